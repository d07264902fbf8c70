package connection

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Transports a connection file may declare.
const (
	TransportTCP = "tcp"
	TransportIPC = "ipc"
)

// SchemeHMACSHA256 is the only signature scheme this client produces.
const SchemeHMACSHA256 = "hmac-sha256"

// Info is the parsed form of a Jupyter connection file.
type Info struct {
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	ShellPort       int    `json:"shell_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	ControlPort     int    `json:"control_port"`
	HBPort          int    `json:"hb_port"`
	Key             string `json:"key"`
	SignatureScheme string `json:"signature_scheme"`
	KernelName      string `json:"kernel_name,omitempty"`
}

// New builds connection info for a kernel we are about to launch: loopback
// TCP, five free ports, and a fresh random key.
func New(kernelName string) (*Info, error) {
	ports, err := FreePorts(5)
	if err != nil {
		return nil, fmt.Errorf("allocate ports: %w", err)
	}
	return &Info{
		Transport:       TransportTCP,
		IP:              "127.0.0.1",
		ShellPort:       ports[0],
		IOPubPort:       ports[1],
		StdinPort:       ports[2],
		ControlPort:     ports[3],
		HBPort:          ports[4],
		Key:             uuid.NewString(),
		SignatureScheme: SchemeHMACSHA256,
		KernelName:      kernelName,
	}, nil
}

// Load reads and validates a connection file.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &info, nil
}

// Write stores the connection file with owner-only permissions; the key
// inside grants execute rights on the kernel.
func (i *Info) Write(path string) error {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the file describes something we can dial.
func (i *Info) Validate() error {
	switch i.Transport {
	case "", TransportTCP, TransportIPC:
	default:
		return fmt.Errorf("%w: %q", ErrBadTransport, i.Transport)
	}
	switch i.SignatureScheme {
	case "", SchemeHMACSHA256:
	default:
		return fmt.Errorf("%w: %q", ErrBadScheme, i.SignatureScheme)
	}
	for name, port := range map[string]int{
		"shell_port":   i.ShellPort,
		"iopub_port":   i.IOPubPort,
		"stdin_port":   i.StdinPort,
		"control_port": i.ControlPort,
		"hb_port":      i.HBPort,
	} {
		if port <= 0 {
			return fmt.Errorf("%w: %s", ErrMissingPort, name)
		}
	}
	return nil
}

// Signed reports whether messages must carry HMAC signatures.
func (i *Info) Signed() bool { return i.Key != "" }

// addr renders one endpoint. IPC transports address filesystem paths, with
// the port suffixed the way Jupyter forms them.
func (i *Info) addr(port int) string {
	if i.Transport == TransportIPC {
		return fmt.Sprintf("ipc://%s-%d", i.IP, port)
	}
	host := i.IP
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("tcp://%s:%d", host, port)
}

// ShellAddr returns the shell channel endpoint.
func (i *Info) ShellAddr() string { return i.addr(i.ShellPort) }

// IOPubAddr returns the iopub channel endpoint.
func (i *Info) IOPubAddr() string { return i.addr(i.IOPubPort) }

// StdinAddr returns the stdin channel endpoint.
func (i *Info) StdinAddr() string { return i.addr(i.StdinPort) }

// ControlAddr returns the control channel endpoint.
func (i *Info) ControlAddr() string { return i.addr(i.ControlPort) }

// HBAddr returns the heartbeat endpoint.
func (i *Info) HBAddr() string { return i.addr(i.HBPort) }
