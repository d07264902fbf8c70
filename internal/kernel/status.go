package kernel

// Status is the lifecycle state of a kernel client.
type Status int

const (
	// StatusStopped indicates no kernel is connected.
	StatusStopped Status = iota
	// StatusLaunching indicates the kernel process is starting.
	StatusLaunching
	// StatusConnecting indicates channels are up and the handshake is in
	// progress.
	StatusConnecting
	// StatusIdle indicates the kernel is ready for work.
	StatusIdle
	// StatusBusy indicates the kernel is executing.
	StatusBusy
	// StatusRestarting indicates a restart is in progress.
	StatusRestarting
	// StatusDead indicates the kernel exited or stopped answering.
	StatusDead
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusLaunching:
		return "launching"
	case StatusConnecting:
		return "connecting"
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusRestarting:
		return "restarting"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Alive reports whether the kernel is usable or about to be.
func (s Status) Alive() bool {
	switch s {
	case StatusIdle, StatusBusy, StatusConnecting, StatusRestarting:
		return true
	default:
		return false
	}
}
