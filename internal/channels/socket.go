package channels

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"

	"github.com/bengtfrost/nbkernel/internal/connection"
)

// Socket is the slice of zmq4.Socket behavior the channel layer uses.
// Fakes implement it in tests.
type Socket interface {
	Send(zmq4.Msg) error
	Recv() (zmq4.Msg, error)
	Close() error
}

// dialDealer connects a DEALER socket carrying the session identity, which
// kernels use to route replies back to us.
func dialDealer(ctx context.Context, addr, identity string) (Socket, error) {
	sock := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity(identity)))
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return sock, nil
}

// dialSub connects the iopub SUB socket subscribed to every topic.
func dialSub(ctx context.Context, addr string) (Socket, error) {
	sock := zmq4.NewSub(ctx)
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		sock.Close()
		return nil, fmt.Errorf("subscribe %s: %w", addr, err)
	}
	return sock, nil
}

// dialReq connects the heartbeat REQ socket.
func dialReq(ctx context.Context, addr string) (Socket, error) {
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return sock, nil
}

// HeartbeatDialer returns a dial function for the kernel's heartbeat
// endpoint, used by the Heartbeat monitor to reopen its socket after a
// missed ping.
func HeartbeatDialer(info *connection.Info) func(context.Context) (Socket, error) {
	return func(ctx context.Context) (Socket, error) {
		return dialReq(ctx, info.HBAddr())
	}
}
