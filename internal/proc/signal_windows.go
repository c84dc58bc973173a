//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const processTerminate = 0x0001

func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminateGroup has no graceful equivalent on Windows; it terminates the
// process directly, same as killGroup.
func terminateGroup(pid int) { killGroup(pid) }

func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	handle, _, _ := procOpenProcess.Call(uintptr(processTerminate), 0, uintptr(uint32(pid)))
	if handle == 0 {
		return
	}
	defer func() { _, _, _ = procCloseHandle.Call(handle) }()
	_, _, _ = procTerminateProcess.Call(handle, uintptr(1))
}
