package connection

import "errors"

// Standard errors returned by the connection package.
var (
	// ErrBadTransport indicates a transport other than tcp or ipc.
	ErrBadTransport = errors.New("unsupported transport")

	// ErrBadScheme indicates a signature scheme this client cannot produce.
	ErrBadScheme = errors.New("unsupported signature scheme")

	// ErrMissingPort indicates a connection file without all five channel
	// ports.
	ErrMissingPort = errors.New("connection file missing channel port")
)
