//go:build unix

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// SetNewPG 子进程放到独立的进程组，停止时可以连同孙进程一起结束
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

/**
 * Send SIGTERM to the process group led by pid
 * @param {int} pid - Process group leader
 * @returns {error} Returns error if the signal can't be delivered
 * @description
 * - Falls back to the single process when the group is gone
 */
func TerminateProcess(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// KillProcessByPID 强制结束整个进程组
func KillProcessByPID(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	err := syscall.Kill(-pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		// 进程组已经不存在，再尝试单个进程
		err = syscall.Kill(pid, sig)
	}
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to send %v to PID %d: %w", sig, pid, err)
	}
	return nil
}

// IsProcessRunning 用0信号探测进程是否存在
func IsProcessRunning(pid int) (bool, error) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
