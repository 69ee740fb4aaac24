package config

import (
	"errors"
	"fmt"
	"regexp"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var (
	ErrDuplicateName   = errors.New("duplicate app name")
	ErrInvalidName     = errors.New("invalid app name")
	ErrMissingScript   = errors.New("script is required")
	ErrNegativeSetting = errors.New("negative value")
	ErrSharedLogFile   = errors.New("log file shared between apps")
	ErrInvalidArgs     = errors.New("invalid argument string")
)

/**
 * Validate a set of app declarations
 * @param {[]AppSpec} apps - Resolved apps
 * @returns {error} Joined error listing every violation, nil when valid
 * @description
 * - Names must be URL safe and pairwise distinct
 * - script is required and args must split cleanly
 * - restart_delay, max_restarts, min_uptime and kill_timeout can't be negative
 * - No log file may be written by two different apps
 */
func Validate(apps []AppSpec) error {
	var errs []error
	names := make(map[string]int, len(apps))
	logOwners := make(map[string]string, len(apps)*2)

	for i := range apps {
		app := &apps[i]
		if !validName.MatchString(app.Name) {
			errs = append(errs, fmt.Errorf("apps[%d]: %w %q", i, ErrInvalidName, app.Name))
		} else if first, ok := names[app.Name]; ok {
			errs = append(errs, fmt.Errorf("apps[%d]: %w %q, already declared by apps[%d]", i, ErrDuplicateName, app.Name, first))
		} else {
			names[app.Name] = i
		}
		if app.Script == "" {
			errs = append(errs, fmt.Errorf("app %q: %w", app.Name, ErrMissingScript))
		} else if _, _, err := app.CommandLine(); err != nil {
			errs = append(errs, fmt.Errorf("app %q: %w: %v", app.Name, ErrInvalidArgs, err))
		}
		for field, v := range map[string]int{
			"restart_delay": app.RestartDelay,
			"max_restarts":  derefInt(app.MaxRestarts),
			"min_uptime":    derefInt(app.MinUptime),
			"kill_timeout":  app.KillTimeout,
		} {
			if v < 0 {
				errs = append(errs, fmt.Errorf("app %q: %w for %s: %d", app.Name, ErrNegativeSetting, field, v))
			}
		}
		for _, path := range uniquePaths(app.OutFile, app.ErrorFile) {
			if path == "" {
				continue
			}
			if owner, ok := logOwners[path]; ok && owner != app.Name {
				errs = append(errs, fmt.Errorf("app %q: %w %q (also used by %q)", app.Name, ErrSharedLogFile, path, owner))
				continue
			}
			logOwners[path] = app.Name
		}
	}
	return errors.Join(errs...)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// out_file和error_file可以是同一个文件
func uniquePaths(out, err string) []string {
	if out == err {
		return []string{out}
	}
	return []string{out, err}
}
