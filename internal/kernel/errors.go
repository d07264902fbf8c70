package kernel

import "errors"

// Standard errors returned by the kernel package.
var (
	// ErrNotRunning indicates an operation on a client with no live
	// kernel.
	ErrNotRunning = errors.New("kernel not running")

	// ErrAlreadyRunning indicates a second Launch or Attach on the same
	// client.
	ErrAlreadyRunning = errors.New("kernel already running")

	// ErrBusy indicates an execute was requested while another execution
	// is still in flight.
	ErrBusy = errors.New("execution already in flight")

	// ErrNotOwned indicates a lifecycle operation (restart, kill) on a
	// kernel this client attached to but did not launch.
	ErrNotOwned = errors.New("kernel was not launched by this client")

	// ErrHandshakeTimeout indicates the kernel never answered
	// kernel_info_request during startup.
	ErrHandshakeTimeout = errors.New("kernel did not answer handshake")

	// ErrKernelDied indicates the kernel process exited or stopped
	// answering heartbeats.
	ErrKernelDied = errors.New("kernel died")

	// ErrInterruptUnsupported indicates no interrupt path exists, such as
	// signal-mode interrupts on a platform without SIGINT.
	ErrInterruptUnsupported = errors.New("no way to interrupt this kernel")
)
