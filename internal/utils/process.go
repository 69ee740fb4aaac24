package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

/**
 * Describe how a process ended
 * @param {*os.ProcessState} state - State returned by Wait, may be nil
 * @param {error} waitErr - Error returned by Wait
 * @returns {int} Exit code, -1 when killed by a signal or unknown
 * @returns {string} Human readable reason
 */
func DescribeExit(state *os.ProcessState, waitErr error) (int, string) {
	if state == nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			state = exitErr.ProcessState
		}
	}
	if state == nil {
		if waitErr != nil {
			return -1, fmt.Sprintf("wait failed: %v", waitErr)
		}
		return -1, "exited"
	}
	code := state.ExitCode()
	if code == 0 {
		return 0, "exited normally"
	}
	return code, state.String()
}
