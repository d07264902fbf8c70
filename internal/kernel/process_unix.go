//go:build unix

package kernel

import (
	"os/exec"
	"syscall"
)

// setProcessGroup gives the kernel its own process group, so interrupts
// reach subprocesses it spawned without touching our own group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptGroup sends SIGINT to the kernel's process group, matching how
// terminals deliver Ctrl-C.
func interruptGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}

// terminateProcess sends SIGTERM to the kernel's process group.
func terminateProcess(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}
