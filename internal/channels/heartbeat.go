package channels

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
)

// Heartbeat defaults.
const (
	DefaultHeartbeatInterval = 3 * time.Second
	DefaultHeartbeatTimeout  = 1 * time.Second
	DefaultMaxMisses         = 3
)

var pingFrame = []byte("ping")

// HeartbeatOption configures a Heartbeat.
type HeartbeatOption func(*Heartbeat)

// WithInterval sets the time between pings.
func WithInterval(d time.Duration) HeartbeatOption {
	return func(h *Heartbeat) { h.interval = d }
}

// WithTimeout sets how long to wait for a pong.
func WithTimeout(d time.Duration) HeartbeatOption {
	return func(h *Heartbeat) { h.timeout = d }
}

// WithMaxMisses sets how many consecutive missed pongs mark the kernel
// dead.
func WithMaxMisses(n int) HeartbeatOption {
	return func(h *Heartbeat) { h.maxMisses = n }
}

// WithOnChange registers a callback fired on every liveness transition.
func WithOnChange(fn func(alive bool)) HeartbeatOption {
	return func(h *Heartbeat) { h.onChange = fn }
}

// Heartbeat pings a kernel's heartbeat socket and tracks liveness. A REQ
// socket that missed its pong is stuck mid-transaction, so the monitor
// reopens it after every miss.
type Heartbeat struct {
	dial      func(context.Context) (Socket, error)
	interval  time.Duration
	timeout   time.Duration
	maxMisses int
	onChange  func(bool)

	alive  atomic.Bool
	beats  atomic.Int64
	misses atomic.Int64
}

// NewHeartbeat builds a monitor dialing the heartbeat endpoint with dial.
func NewHeartbeat(dial func(context.Context) (Socket, error), opts ...HeartbeatOption) *Heartbeat {
	h := &Heartbeat{
		dial:      dial,
		interval:  DefaultHeartbeatInterval,
		timeout:   DefaultHeartbeatTimeout,
		maxMisses: DefaultMaxMisses,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Alive reports whether the kernel answered its most recent ping window.
func (h *Heartbeat) Alive() bool { return h.alive.Load() }

// Beats returns the number of answered pings.
func (h *Heartbeat) Beats() int64 { return h.beats.Load() }

// Misses returns the number of unanswered pings.
func (h *Heartbeat) Misses() int64 { return h.misses.Load() }

// Run pings until the context is canceled. It returns the context error on
// cancellation, or a dial error if the socket cannot be reopened.
func (h *Heartbeat) Run(ctx context.Context) error {
	sock, err := h.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { sock.Close() }()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if h.ping(ctx, sock) {
			h.beats.Add(1)
			consecutive = 0
			h.setAlive(true)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		h.misses.Add(1)
		consecutive++
		if consecutive >= h.maxMisses {
			h.setAlive(false)
		}

		sock.Close()
		if sock, err = h.dial(ctx); err != nil {
			return err
		}
	}
}

// ping sends one ping and waits for the pong.
func (h *Heartbeat) ping(ctx context.Context, sock Socket) bool {
	if err := sock.Send(zmq4.NewMsgFrom(pingFrame)); err != nil {
		return false
	}

	reply := make(chan error, 1)
	go func() {
		_, err := sock.Recv()
		reply <- err
	}()

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case err := <-reply:
		return err == nil
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Heartbeat) setAlive(alive bool) {
	if h.alive.Swap(alive) != alive && h.onChange != nil {
		h.onChange(alive)
	}
}
