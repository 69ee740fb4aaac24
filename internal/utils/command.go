package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// 按扩展名推断的解释器
var interpreters = map[string]string{
	".js":  "node",
	".mjs": "node",
	".cjs": "node",
	".py":  "python3",
	".sh":  "bash",
}

/**
 * Build the command line of a managed process
 * @param {string} script - Executable or script file
 * @param {string} interpreter - "none", empty (infer from extension) or an interpreter binary
 * @param {string} interpreterArgs - Extra interpreter arguments
 * @param {string} args - Argument string
 * @returns {string} Command to execute
 * @returns {[]string} Arguments
 * @returns {error} Quoting error in interpreterArgs or args
 * @example
 * cmd, argv, _ := GetCommandLine(".venv/bin/python", "none", "", "backend/app.py")
 * // cmd=".venv/bin/python" argv=["backend/app.py"]
 */
func GetCommandLine(script, interpreter, interpreterArgs, args string) (string, []string, error) {
	scriptArgs, err := SplitArgs(args)
	if err != nil {
		return "", nil, fmt.Errorf("invalid args %q: %w", args, err)
	}
	if interpreter == "" {
		interpreter = interpreters[strings.ToLower(filepath.Ext(script))]
	}
	if interpreter == "" || interpreter == "none" {
		return script, scriptArgs, nil
	}

	iargs, err := SplitArgs(interpreterArgs)
	if err != nil {
		return "", nil, fmt.Errorf("invalid interpreter_args %q: %w", interpreterArgs, err)
	}
	argv := make([]string, 0, len(iargs)+1+len(scriptArgs))
	argv = append(argv, iargs...)
	argv = append(argv, script)
	argv = append(argv, scriptArgs...)
	return interpreter, argv, nil
}

// SplitArgs 按shell规则拆分参数，不展开环境变量
func SplitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false
	return p.Parse(s)
}
