package channels

import "errors"

// Standard errors returned by the channels package.
var (
	// ErrClosed indicates use of a connection after Close.
	ErrClosed = errors.New("connection closed")

	// ErrDecode indicates a received frame sequence that did not decode,
	// including signature failures. The connection itself is still good;
	// readers skip the message and keep receiving.
	ErrDecode = errors.New("undecodable message")

	// ErrHeartbeatDead indicates the kernel stopped answering pings.
	ErrHeartbeatDead = errors.New("kernel heartbeat lost")
)
