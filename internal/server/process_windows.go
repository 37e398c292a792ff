//go:build windows

package server

import (
	"os/exec"
	"time"
)

// setupProcessGroup is a no-op placeholder on Windows; scsynth is killed
// directly rather than via a process-group signal (§4.6 stop_server).
func setupProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
	time.Sleep(250 * time.Millisecond)
}
