//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so the
// whole group can be signaled on shutdown.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGTERM to the child's process group.
func terminateGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

// killGroup sends SIGKILL to the child's process group.
func killGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
