//go:build unix

package utils

import (
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestDescribeExit(t *testing.T) {
	err := exec.Command("/bin/sh", "-c", "exit 3").Run()
	code, reason := DescribeExit(nil, err)
	if code != 3 || !strings.Contains(reason, "exit status 3") {
		t.Errorf("DescribeExit = %d, %q", code, reason)
	}

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	code, reason = DescribeExit(cmd.ProcessState, nil)
	if code != 0 || reason != "exited normally" {
		t.Errorf("DescribeExit = %d, %q", code, reason)
	}
}

func TestTerminateProcessGroup(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & wait")
	SetNewPG(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if running, _ := IsProcessRunning(cmd.Process.Pid); !running {
		t.Fatal("process should be running")
	}
	if err := TerminateProcess(cmd.Process.Pid); err != nil {
		t.Fatalf("TerminateProcess: %v", err)
	}
	select {
	case err := <-done:
		code, _ := DescribeExit(cmd.ProcessState, err)
		if code != -1 {
			t.Errorf("expected signal exit, got code %d", code)
		}
	case <-time.After(5 * time.Second):
		KillProcessByPID(cmd.Process.Pid)
		t.Fatal("process group did not exit after SIGTERM")
	}
}
