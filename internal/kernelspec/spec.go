package kernelspec

import (
	"fmt"
	"regexp"
	"strings"
)

// Interrupt modes a kernelspec may declare.
const (
	// InterruptSignal interrupts the kernel with SIGINT to its process
	// group. This is the default.
	InterruptSignal = "signal"

	// InterruptMessage interrupts the kernel with an interrupt_request on
	// the control channel.
	InterruptMessage = "message"
)

// Placeholders substituted into argv entries when launching.
const (
	ConnectionFileArg = "{connection_file}"
	ResourceDirArg    = "{resource_dir}"
)

// SpecFile is the file name a kernelspec directory must contain.
const SpecFile = "kernel.json"

var nameRe = regexp.MustCompile(`^[a-z0-9._-]+$`)

// Spec defines how to start one kind of kernel. It mirrors the kernel.json
// schema.
type Spec struct {
	// Argv is the launch command. One entry must carry the
	// {connection_file} placeholder.
	Argv []string `json:"argv"`

	// DisplayName is what UIs show for this kernel.
	DisplayName string `json:"display_name"`

	// Language is the implementation language, matched against notebook
	// metadata when picking a kernel.
	Language string `json:"language"`

	// InterruptMode is "signal" or "message". Empty means "signal".
	InterruptMode string `json:"interrupt_mode,omitempty"`

	// Env holds extra environment variables for the kernel process.
	Env map[string]string `json:"env,omitempty"`

	// Metadata carries tool-specific extras untouched.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks that the spec can actually launch a kernel.
func (s *Spec) Validate() error {
	if len(s.Argv) == 0 {
		return ErrNoArgv
	}
	if !s.hasConnectionArg() {
		return ErrNoConnectionArg
	}
	switch s.InterruptMode {
	case "", InterruptSignal, InterruptMessage:
	default:
		return fmt.Errorf("unknown interrupt_mode %q", s.InterruptMode)
	}
	return nil
}

func (s *Spec) hasConnectionArg() bool {
	for _, arg := range s.Argv {
		if strings.Contains(arg, ConnectionFileArg) {
			return true
		}
	}
	return false
}

// Command renders argv with the connection file and resource directory
// substituted. The returned slice is a copy.
func (s *Spec) Command(connectionFile, resourceDir string) []string {
	out := make([]string, len(s.Argv))
	for i, arg := range s.Argv {
		arg = strings.ReplaceAll(arg, ConnectionFileArg, connectionFile)
		arg = strings.ReplaceAll(arg, ResourceDirArg, resourceDir)
		out[i] = arg
	}
	return out
}

// InterruptsViaMessage reports whether interrupts go over the control
// channel instead of SIGINT.
func (s *Spec) InterruptsViaMessage() bool {
	return s.InterruptMode == InterruptMessage
}

// ValidateName checks a kernelspec name. Names are compared
// case-insensitively, so only the lowercase form is accepted here.
func ValidateName(name string) error {
	if name == "" || !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// NormalizeName lowercases a kernelspec name for lookup and storage.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}
