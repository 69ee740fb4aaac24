package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rag-keeper/internal/utils"
)

const (
	DefaultMaxRestarts   = 16
	DefaultMinUptime     = 1000
	DefaultKillTimeout   = 1600
	DefaultLogDateFormat = "2006-01-02T15:04:05"
	InterpreterNone      = "none"
	profileEnvKeyPrefix  = "env_"
)

/**
 * AppSpec one managed process declared in the ecosystem file
 * @property {string} name - Unique process name, the addressing key
 * @property {string} script - Executable path, interpreter alias or script file
 * @property {string} args - Argument string, split with shell word rules
 * @property {string} cwd - Working directory
 * @property {string} interpreter - "none" runs script directly, empty infers from extension
 * @property {EnvMap} env - Variables merged over the inherited environment
 * @property {string} outFile - stdout log file
 * @property {string} errorFile - stderr log file
 * @property {bool} time - Prefix log lines with a timestamp
 * @property {int} restartDelay - Milliseconds to wait before an automatic restart
 * @property {*int} maxRestarts - Cap on consecutive automatic restarts
 */
type AppSpec struct {
	Name            string `json:"name" yaml:"name"`
	Script          string `json:"script" yaml:"script"`
	Args            string `json:"args,omitempty" yaml:"args,omitempty"`
	Cwd             string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Interpreter     string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`
	InterpreterArgs string `json:"interpreter_args,omitempty" yaml:"interpreter_args,omitempty"`
	Env             EnvMap `json:"env,omitempty" yaml:"env,omitempty"`
	OutFile         string `json:"out_file,omitempty" yaml:"out_file,omitempty"`
	ErrorFile       string `json:"error_file,omitempty" yaml:"error_file,omitempty"`
	Time            bool   `json:"time,omitempty" yaml:"time,omitempty"`
	LogDateFormat   string `json:"log_date_format,omitempty" yaml:"log_date_format,omitempty"`
	RestartDelay    int    `json:"restart_delay,omitempty" yaml:"restart_delay,omitempty"`
	MaxRestarts     *int   `json:"max_restarts,omitempty" yaml:"max_restarts,omitempty"`
	MinUptime       *int   `json:"min_uptime,omitempty" yaml:"min_uptime,omitempty"`
	KillTimeout     int    `json:"kill_timeout,omitempty" yaml:"kill_timeout,omitempty"`
	AutoRestart     *bool  `json:"autorestart,omitempty" yaml:"autorestart,omitempty"`
	AutoStart       *bool  `json:"autostart,omitempty" yaml:"autostart,omitempty"`
	StopExitCodes   []int  `json:"stop_exit_codes,omitempty" yaml:"stop_exit_codes,omitempty"`

	// env_<profile> blocks, keyed by profile
	Profiles map[string]EnvMap `json:"-" yaml:"-"`
}

// EnvMap 环境变量表，值保持配置文件里的原文
type EnvMap map[string]string

func (m *EnvMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(EnvMap, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = fmt.Sprint(val)
		default:
			return fmt.Errorf("env %s: value must be a scalar", k)
		}
	}
	*m = out
	return nil
}

/**
 * Decode the apps list of an ecosystem file
 * @param {[]byte} data - YAML or JSON document
 * @param {string} profile - Selected profile, empty for none
 * @returns {[]AppSpec} Apps in declaration order
 * @returns {error} Decode error
 * @description
 * - YAML goes through yaml.v3 nodes, string fields and env values keep their literal text
 *   (on, 0755 and 3.10 stay as written)
 * - A document starting with '{' is JSON, env numbers keep their literal text too
 */
func decodeApps(data []byte, profile string) ([]AppSpec, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return decodeAppsJSON(trimmed, profile)
	}
	var doc struct {
		Apps []yaml.Node `yaml:"apps"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	apps := make([]AppSpec, 0, len(doc.Apps))
	for i := range doc.Apps {
		node := &doc.Apps[i]
		if node.Kind == yaml.AliasNode {
			node = node.Alias
		}
		var app AppSpec
		if err := node.Decode(&app); err != nil {
			return nil, fmt.Errorf("apps[%d]: %w", i, err)
		}
		if node.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(node.Content); j += 2 {
				key := node.Content[j].Value
				if !strings.HasPrefix(key, profileEnvKeyPrefix) {
					continue
				}
				var block EnvMap
				if err := node.Content[j+1].Decode(&block); err != nil {
					return nil, fmt.Errorf("apps[%d].%s: %w", i, key, err)
				}
				app.addProfile(strings.TrimPrefix(key, profileEnvKeyPrefix), block)
			}
		}
		app.applyProfile(profile)
		apps = append(apps, app)
	}
	return apps, nil
}

func decodeAppsJSON(data []byte, profile string) ([]AppSpec, error) {
	var doc struct {
		Apps []json.RawMessage `json:"apps"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	apps := make([]AppSpec, 0, len(doc.Apps))
	for i, raw := range doc.Apps {
		var app AppSpec
		if err := json.Unmarshal(raw, &app); err != nil {
			return nil, fmt.Errorf("apps[%d]: %w", i, err)
		}
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("apps[%d]: %w", i, err)
		}
		for key, value := range keys {
			if !strings.HasPrefix(key, profileEnvKeyPrefix) {
				continue
			}
			var block EnvMap
			if err := json.Unmarshal(value, &block); err != nil {
				return nil, fmt.Errorf("apps[%d].%s: %w", i, key, err)
			}
			app.addProfile(strings.TrimPrefix(key, profileEnvKeyPrefix), block)
		}
		app.applyProfile(profile)
		apps = append(apps, app)
	}
	return apps, nil
}

func (a *AppSpec) addProfile(profile string, block EnvMap) {
	if a.Profiles == nil {
		a.Profiles = map[string]EnvMap{}
	}
	a.Profiles[profile] = block
}

func (a *AppSpec) applyProfile(profile string) {
	block, ok := a.Profiles[profile]
	if profile == "" || !ok {
		return
	}
	merged := make(EnvMap, len(a.Env)+len(block))
	for k, v := range a.Env {
		merged[k] = v
	}
	for k, v := range block {
		merged[k] = v
	}
	a.Env = merged
}

/**
 * Fill defaults and make paths absolute
 * @param {string} wd - Supervisor working directory
 * @param {string} logsDir - Directory for default log files
 */
func (a *AppSpec) resolve(wd, logsDir string) {
	switch {
	case a.Cwd == "":
		a.Cwd = wd
	case !filepath.IsAbs(a.Cwd):
		a.Cwd = filepath.Join(wd, a.Cwd)
	}
	a.Cwd = filepath.Clean(a.Cwd)

	if a.OutFile == "" {
		a.OutFile = filepath.Join(logsDir, a.Name+"-out.log")
	} else if !filepath.IsAbs(a.OutFile) {
		a.OutFile = filepath.Join(a.Cwd, a.OutFile)
	}
	if a.ErrorFile == "" {
		a.ErrorFile = filepath.Join(logsDir, a.Name+"-error.log")
	} else if !filepath.IsAbs(a.ErrorFile) {
		a.ErrorFile = filepath.Join(a.Cwd, a.ErrorFile)
	}
	a.OutFile = filepath.Clean(a.OutFile)
	a.ErrorFile = filepath.Clean(a.ErrorFile)

	if a.LogDateFormat == "" {
		a.LogDateFormat = DefaultLogDateFormat
	}
	if a.MaxRestarts == nil {
		n := DefaultMaxRestarts
		a.MaxRestarts = &n
	}
	if a.MinUptime == nil {
		n := DefaultMinUptime
		a.MinUptime = &n
	}
	if a.KillTimeout == 0 {
		a.KillTimeout = DefaultKillTimeout
	}
	if a.AutoRestart == nil {
		b := true
		a.AutoRestart = &b
	}
	if a.AutoStart == nil {
		b := true
		a.AutoStart = &b
	}
}

func (a *AppSpec) RestartLimit() int {
	if a.MaxRestarts == nil {
		return DefaultMaxRestarts
	}
	return *a.MaxRestarts
}

func (a *AppSpec) RestartDelayDuration() time.Duration {
	return time.Duration(a.RestartDelay) * time.Millisecond
}

func (a *AppSpec) MinUptimeDuration() time.Duration {
	if a.MinUptime == nil {
		return DefaultMinUptime * time.Millisecond
	}
	return time.Duration(*a.MinUptime) * time.Millisecond
}

func (a *AppSpec) KillTimeoutDuration() time.Duration {
	if a.KillTimeout <= 0 {
		return DefaultKillTimeout * time.Millisecond
	}
	return time.Duration(a.KillTimeout) * time.Millisecond
}

func (a *AppSpec) ShouldAutoRestart() bool {
	return a.AutoRestart == nil || *a.AutoRestart
}

func (a *AppSpec) ShouldAutoStart() bool {
	return a.AutoStart == nil || *a.AutoStart
}

// IsStopExitCode 退出码在stop_exit_codes里时不自动重启
func (a *AppSpec) IsStopExitCode(code int) bool {
	for _, c := range a.StopExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// CommandLine 解析解释器和参数，得到实际执行的命令
func (a *AppSpec) CommandLine() (string, []string, error) {
	return utils.GetCommandLine(a.Script, a.Interpreter, a.InterpreterArgs, a.Args)
}

/**
 * Environ merges env over the inherited environment
 * @param {[]string} base - Inherited environment in KEY=VALUE form
 * @returns {[]string} Merged environment, configured keys win and are not duplicated
 */
func (a *AppSpec) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(a.Env))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if _, ok := a.Env[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range slices.Sorted(maps.Keys(a.Env)) {
		out = append(out, k+"="+a.Env[k])
	}
	return out
}
