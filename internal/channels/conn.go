package channels

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"

	"github.com/bengtfrost/nbkernel/internal/connection"
	"github.com/bengtfrost/nbkernel/internal/wire"
)

// Conn bundles the shell, control, stdin, and iopub sockets of one kernel
// with the signer every message passes through. The heartbeat socket is
// managed separately by Heartbeat.
type Conn struct {
	shell   Socket
	control Socket
	stdin   Socket
	iopub   Socket

	signer  *wire.Signer
	session string
	closed  atomic.Bool
}

// Dial connects all four message channels described by a connection file.
func Dial(ctx context.Context, info *connection.Info, signer *wire.Signer, session string) (*Conn, error) {
	shell, err := dialDealer(ctx, info.ShellAddr(), session)
	if err != nil {
		return nil, fmt.Errorf("shell: %w", err)
	}
	control, err := dialDealer(ctx, info.ControlAddr(), session)
	if err != nil {
		shell.Close()
		return nil, fmt.Errorf("control: %w", err)
	}
	stdin, err := dialDealer(ctx, info.StdinAddr(), session)
	if err != nil {
		shell.Close()
		control.Close()
		return nil, fmt.Errorf("stdin: %w", err)
	}
	iopub, err := dialSub(ctx, info.IOPubAddr())
	if err != nil {
		shell.Close()
		control.Close()
		stdin.Close()
		return nil, fmt.Errorf("iopub: %w", err)
	}
	return New(shell, control, stdin, iopub, signer, session), nil
}

// New wires a Conn over already connected sockets.
func New(shell, control, stdin, iopub Socket, signer *wire.Signer, session string) *Conn {
	return &Conn{
		shell:   shell,
		control: control,
		stdin:   stdin,
		iopub:   iopub,
		signer:  signer,
		session: session,
	}
}

// Session returns the client session ID stamped on outgoing headers.
func (c *Conn) Session() string { return c.session }

// Signer returns the connection's message signer.
func (c *Conn) Signer() *wire.Signer { return c.signer }

// send encodes and sends one message.
func (c *Conn) send(sock Socket, msg *wire.Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	frames, err := wire.Encode(msg, c.signer)
	if err != nil {
		return err
	}
	return sock.Send(zmq4.NewMsgFrom(frames...))
}

// recv blocks for one message and decodes it.
func (c *Conn) recv(sock Socket) (*wire.Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	zmsg, err := sock.Recv()
	if err != nil {
		if c.closed.Load() {
			return nil, ErrClosed
		}
		return nil, err
	}
	msg, err := wire.Decode(zmsg.Frames, c.signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return msg, nil
}

// SendShell sends a request on the shell channel.
func (c *Conn) SendShell(msg *wire.Message) error { return c.send(c.shell, msg) }

// SendControl sends a request on the control channel.
func (c *Conn) SendControl(msg *wire.Message) error { return c.send(c.control, msg) }

// SendStdin answers an input_request on the stdin channel.
func (c *Conn) SendStdin(msg *wire.Message) error { return c.send(c.stdin, msg) }

// RecvShell blocks for the next shell reply.
func (c *Conn) RecvShell() (*wire.Message, error) { return c.recv(c.shell) }

// RecvControl blocks for the next control reply.
func (c *Conn) RecvControl() (*wire.Message, error) { return c.recv(c.control) }

// RecvIOPub blocks for the next iopub broadcast.
func (c *Conn) RecvIOPub() (*wire.Message, error) { return c.recv(c.iopub) }

// RecvStdin blocks for the next input_request.
func (c *Conn) RecvStdin() (*wire.Message, error) { return c.recv(c.stdin) }

// Close shuts every socket. Blocked Recv calls return.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	for _, sock := range []Socket{c.shell, c.control, c.stdin, c.iopub} {
		if err := sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
