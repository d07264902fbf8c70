//go:build windows

package kernel

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// interruptGroup cannot deliver SIGINT on Windows; callers fall back to
// message-mode interrupts.
func interruptGroup(cmd *exec.Cmd) error {
	return ErrInterruptUnsupported
}

func terminateProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
