package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bengtfrost/nbkernel/internal/channels"
	"github.com/bengtfrost/nbkernel/internal/connection"
	"github.com/bengtfrost/nbkernel/internal/kernelspec"
	"github.com/bengtfrost/nbkernel/internal/wire"
)

// iopubGrace bounds how long readiness and completion wait for IOPub
// traffic before proceeding without it.
const iopubGrace = 10 * time.Second

// Config holds tunable timeouts for a kernel client.
type Config struct {
	// StartupTimeout bounds the launch handshake, from process start
	// until the kernel answers kernel_info_request.
	StartupTimeout time.Duration

	// RequestTimeout bounds individual shell and control requests.
	RequestTimeout time.Duration

	// HeartbeatInterval is the ping cadence on the hb channel.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long a single ping waits for its pong.
	HeartbeatTimeout time.Duration

	// HeartbeatMaxMisses is how many consecutive missed pongs mark the
	// kernel dead.
	HeartbeatMaxMisses int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		StartupTimeout:     60 * time.Second,
		RequestTimeout:     30 * time.Second,
		HeartbeatInterval:  channels.DefaultHeartbeatInterval,
		HeartbeatTimeout:   channels.DefaultHeartbeatTimeout,
		HeartbeatMaxMisses: channels.DefaultMaxMisses,
	}
}

// StdinHandler answers an input_request from the kernel. The password
// flag asks the handler not to echo what the user types.
type StdinHandler func(prompt string, password bool) (string, error)

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the default timeouts.
func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithLogger sets the client logger. Kernel process output is written
// to the same logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithOnStatus registers a callback fired on every status transition.
// The callback runs on internal goroutines and must not block.
func WithOnStatus(fn func(Status)) Option {
	return func(c *Client) { c.onStatus = fn }
}

// WithStdinHandler routes kernel input_request messages to fn. Without
// a handler, executions are sent with allow_stdin false.
func WithStdinHandler(fn StdinHandler) Option {
	return func(c *Client) { c.stdinHandler = fn }
}

// Client manages one Jupyter kernel: its process when launched by us,
// its five ZeroMQ channels, and the request/reply correlation on top.
//
// Shell requests are serialized: at most one execute is in flight at a
// time, and Execute returns ErrBusy rather than queueing. Control
// requests bypass the shell queue so interrupt and shutdown reach a
// busy kernel.
type Client struct {
	cfg Config
	log zerolog.Logger

	session     string
	signer      *wire.Signer
	info        *connection.Info
	connFile    string
	ownsFile    bool
	spec        *kernelspec.Spec
	resourceDir string

	conn *channels.Conn
	hb   *channels.Heartbeat

	procMu sync.RWMutex
	proc   *process

	status     atomic.Int32
	restarting atomic.Bool
	iopubSeen  atomic.Bool

	kernelInfo *wire.KernelInfoReply
	infoMu     sync.RWMutex

	pendingShell   map[string]chan *wire.Message
	pendingControl map[string]chan *wire.Message
	pendingMu      sync.Mutex

	executing atomic.Bool
	current   *execution
	currentMu sync.RWMutex

	onStatus     func(Status)
	stdinHandler StdinHandler

	metrics *Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	exitCh    chan error
	exitErr   error
	deadCh    chan struct{}
	exitOnce  sync.Once
	closeOnce sync.Once
}

// New creates an unconnected client. Call Launch or Attach to bind it
// to a kernel.
func New(opts ...Option) *Client {
	c := &Client{
		cfg:            DefaultConfig(),
		log:            zerolog.Nop(),
		pendingShell:   make(map[string]chan *wire.Message),
		pendingControl: make(map[string]chan *wire.Message),
		exitCh:         make(chan error, 1),
		deadCh:         make(chan struct{}),
		metrics:        NewMetrics(),
	}
	c.status.Store(int32(StatusStopped))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Launch starts a kernel process from an installed kernelspec, writes
// its connection file under the Jupyter runtime directory, connects the
// channels, and waits for the kernel to answer the handshake.
//
// The context governs both startup and the lifetime of the connection:
// cancel it to tear the client down.
func (c *Client) Launch(ctx context.Context, inst kernelspec.Installed) error {
	if !c.transition(StatusStopped, StatusLaunching) {
		return ErrAlreadyRunning
	}

	info, err := connection.New(inst.Name)
	if err != nil {
		c.setStatus(StatusStopped)
		return fmt.Errorf("allocate connection: %w", err)
	}
	path, err := connection.CreateFile(info)
	if err != nil {
		c.setStatus(StatusStopped)
		return fmt.Errorf("write connection file: %w", err)
	}

	spec := inst.Spec
	c.info = info
	c.connFile = path
	c.ownsFile = true
	c.spec = &spec
	c.resourceDir = inst.Dir

	if err := spec.Validate(); err != nil {
		c.cleanupFile()
		c.setStatus(StatusStopped)
		return fmt.Errorf("kernelspec %q: %w", inst.Name, err)
	}
	argv := spec.Command(path, inst.Dir)

	proc, err := startProcess(argv, spec.Env, c.procOutput(inst.Name))
	if err != nil {
		c.cleanupFile()
		c.setStatus(StatusStopped)
		return fmt.Errorf("start kernel %q: %w", inst.Name, err)
	}
	c.setProc(proc)
	c.log.Info().
		Str("kernel", inst.Name).
		Int("pid", proc.PID()).
		Str("connection_file", path).
		Msg("kernel process started")

	if err := c.connect(ctx); err != nil {
		proc.Kill()
		c.cleanupFile()
		c.setStatus(StatusStopped)
		return err
	}
	go c.watchProcess(proc)

	if err := c.handshake(ctx); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Attach connects to an already-running kernel through its connection
// file. Attached kernels are not owned: Close leaves the process and
// the connection file alone, and Restart refuses to act.
func (c *Client) Attach(ctx context.Context, connectionFile string) error {
	if !c.transition(StatusStopped, StatusConnecting) {
		return ErrAlreadyRunning
	}

	info, err := connection.Load(connectionFile)
	if err != nil {
		c.setStatus(StatusStopped)
		return err
	}
	c.info = info
	c.connFile = connectionFile
	c.ownsFile = false

	if err := c.connect(ctx); err != nil {
		c.setStatus(StatusStopped)
		return err
	}
	if err := c.handshake(ctx); err != nil {
		c.Close()
		return err
	}
	c.log.Info().Str("connection_file", connectionFile).Msg("attached to running kernel")
	return nil
}

// connect dials the channels and starts the reader loops and the
// heartbeat monitor.
func (c *Client) connect(ctx context.Context) error {
	signer, err := wire.NewSigner(c.info.SignatureScheme, c.info.Key)
	if err != nil {
		return err
	}
	c.signer = signer
	c.session = uuid.NewString()

	c.ctx, c.cancel = context.WithCancel(ctx)
	conn, err := channels.Dial(c.ctx, c.info, signer, c.session)
	if err != nil {
		c.cancel()
		return fmt.Errorf("dial kernel: %w", err)
	}
	c.conn = conn
	c.setStatus(StatusConnecting)

	c.hb = channels.NewHeartbeat(channels.HeartbeatDialer(c.info),
		channels.WithInterval(c.cfg.HeartbeatInterval),
		channels.WithTimeout(c.cfg.HeartbeatTimeout),
		channels.WithMaxMisses(c.cfg.HeartbeatMaxMisses),
		channels.WithOnChange(c.onHeartbeat),
	)

	g, gctx := errgroup.WithContext(c.ctx)
	c.group = g
	g.Go(func() error { return c.shellLoop(gctx) })
	g.Go(func() error { return c.controlLoop(gctx) })
	g.Go(func() error { return c.iopubLoop(gctx) })
	g.Go(func() error { return c.stdinLoop(gctx) })
	g.Go(func() error { return c.hb.Run(gctx) })
	return nil
}

// handshake probes the kernel with kernel_info_request until it
// answers, then waits briefly for IOPub traffic so the subscription is
// known to be live before the first execute.
func (c *Client) handshake(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, c.cfg.StartupTimeout)
	defer cancel()

	var reply *wire.Message
	for reply == nil {
		msg, err := wire.NewMessage(c.session, wire.MsgTypeKernelInfoRequest, nil)
		if err != nil {
			return err
		}
		try, tcancel := context.WithTimeout(hctx, time.Second)
		reply, err = c.requestShell(try, msg)
		tcancel()
		if err != nil {
			if hctx.Err() != nil {
				return fmt.Errorf("%w: no kernel_info_reply within %s",
					ErrHandshakeTimeout, c.cfg.StartupTimeout)
			}
			select {
			case <-hctx.Done():
				return fmt.Errorf("%w: no kernel_info_reply within %s",
					ErrHandshakeTimeout, c.cfg.StartupTimeout)
			case <-time.After(100 * time.Millisecond):
			}
		}
	}

	var ki wire.KernelInfoReply
	if err := reply.DecodeContent(&ki); err != nil {
		return fmt.Errorf("decode kernel_info_reply: %w", err)
	}
	c.infoMu.Lock()
	c.kernelInfo = &ki
	c.infoMu.Unlock()

	// The handshake retries themselves generate status broadcasts, so
	// seeing any IOPub message proves the subscription joined.
	deadline := time.Now().Add(iopubGrace)
	for !c.iopubSeen.Load() {
		if time.Now().After(deadline) || hctx.Err() != nil {
			c.log.Warn().Msg("no iopub traffic seen after handshake; proceeding")
			break
		}
		select {
		case <-hctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
	}

	c.setStatus(StatusIdle)
	c.log.Info().
		Str("implementation", ki.Implementation).
		Str("protocol", ki.ProtocolVersion).
		Str("language", ki.LanguageInfo.Name).
		Msg("kernel ready")
	return nil
}

// shellLoop receives shell replies and routes them to waiting requests.
func (c *Client) shellLoop(ctx context.Context) error {
	for {
		msg, err := c.conn.RecvShell()
		if err != nil {
			if c.recvFatal(ctx, err, "shell") {
				return nil
			}
			continue
		}
		c.dispatch(c.pendingShell, msg)
	}
}

// controlLoop receives control replies and routes them to waiting
// requests.
func (c *Client) controlLoop(ctx context.Context) error {
	for {
		msg, err := c.conn.RecvControl()
		if err != nil {
			if c.recvFatal(ctx, err, "control") {
				return nil
			}
			continue
		}
		c.dispatch(c.pendingControl, msg)
	}
}

// iopubLoop consumes the broadcast channel: kernel status transitions,
// and the output stream of whichever execution is in flight.
func (c *Client) iopubLoop(ctx context.Context) error {
	for {
		msg, err := c.conn.RecvIOPub()
		if err != nil {
			if c.recvFatal(ctx, err, "iopub") {
				return nil
			}
			continue
		}
		c.iopubSeen.Store(true)
		c.metrics.RecordIOPub()

		if msg.Type() == wire.MsgTypeStatus {
			var st wire.Status
			if err := msg.DecodeContent(&st); err == nil {
				c.setExecState(st.ExecutionState)
			}
		}

		c.currentMu.RLock()
		ex := c.current
		c.currentMu.RUnlock()
		if ex != nil && ex.parent == msg.ParentID() {
			ex.handle(msg)
		}
	}
}

// stdinLoop answers input_request messages from the kernel. Requests
// are answered on a separate goroutine so a slow prompt does not stall
// the channel.
func (c *Client) stdinLoop(ctx context.Context) error {
	for {
		msg, err := c.conn.RecvStdin()
		if err != nil {
			if c.recvFatal(ctx, err, "stdin") {
				return nil
			}
			continue
		}
		if msg.Type() == wire.MsgTypeInputRequest {
			go c.answerStdin(msg)
		}
	}
}

func (c *Client) answerStdin(req *wire.Message) {
	var ir wire.InputRequest
	if err := req.DecodeContent(&ir); err != nil {
		c.log.Warn().Err(err).Msg("bad input_request")
		return
	}
	value := ""
	if c.stdinHandler != nil {
		v, err := c.stdinHandler(ir.Prompt, ir.Password)
		if err != nil {
			c.log.Warn().Err(err).Msg("stdin handler failed; sending empty reply")
		} else {
			value = v
		}
	}
	reply, err := wire.NewMessage(c.session, wire.MsgTypeInputReply, wire.InputReply{Value: value})
	if err != nil {
		return
	}
	reply.Parent = req.Header
	if err := c.conn.SendStdin(reply); err != nil {
		c.log.Warn().Err(err).Msg("send input_reply failed")
	}
}

// recvFatal reports whether a receive error should stop the loop.
// Decode failures are logged and skipped; transport errors and
// shutdown stop the reader.
func (c *Client) recvFatal(ctx context.Context, err error, channel string) bool {
	if ctx.Err() != nil || errors.Is(err, channels.ErrClosed) {
		return true
	}
	if errors.Is(err, channels.ErrDecode) {
		c.log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable message")
		return false
	}
	c.log.Error().Err(err).Str("channel", channel).Msg("channel receive failed")
	return true
}

// dispatch hands a reply to the request waiting on its parent msg_id.
func (c *Client) dispatch(pending map[string]chan *wire.Message, msg *wire.Message) {
	parent := msg.ParentID()
	c.pendingMu.Lock()
	ch, ok := pending[parent]
	if ok {
		delete(pending, parent)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.log.Debug().Str("msg_type", msg.Type()).Str("parent", parent).Msg("stray reply")
		return
	}
	ch <- msg
}

func (c *Client) register(pending map[string]chan *wire.Message, id string) chan *wire.Message {
	ch := make(chan *wire.Message, 1)
	c.pendingMu.Lock()
	pending[id] = ch
	c.pendingMu.Unlock()
	return ch
}

func (c *Client) unregister(pending map[string]chan *wire.Message, id string) {
	c.pendingMu.Lock()
	delete(pending, id)
	c.pendingMu.Unlock()
}

// requestShell sends msg on the shell channel and waits for its reply.
func (c *Client) requestShell(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	return c.request(ctx, msg, c.pendingShell, c.conn.SendShell)
}

// requestControl sends msg on the control channel and waits for its
// reply.
func (c *Client) requestControl(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	return c.request(ctx, msg, c.pendingControl, c.conn.SendControl)
}

func (c *Client) request(ctx context.Context, msg *wire.Message,
	pending map[string]chan *wire.Message, send func(*wire.Message) error) (*wire.Message, error) {

	if c.conn == nil {
		return nil, ErrNotRunning
	}
	id := msg.Header.MsgID
	ch := c.register(pending, id)
	defer c.unregister(pending, id)

	if err := send(msg); err != nil {
		return nil, err
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrNotRunning
	case <-c.deadCh:
		return nil, c.deadErr()
	}
}

// deadErr returns the recorded fatal error, or ErrNotRunning for a
// clean shutdown. Only valid after deadCh is closed.
func (c *Client) deadErr() error {
	if c.exitErr != nil {
		return c.exitErr
	}
	return ErrNotRunning
}

// watchProcess reaps the kernel process and marks the client dead when
// it exits outside of a restart.
func (c *Client) watchProcess(proc *process) {
	<-proc.Done()
	if c.restarting.Load() {
		return
	}
	code := proc.ExitCode()
	c.log.Error().Int("exit_code", code).Msg("kernel process exited")
	c.setStatus(StatusDead)
	c.signalExit(fmt.Errorf("%w: process exited with code %d", ErrKernelDied, code))
}

// onHeartbeat reacts to heartbeat liveness transitions. A dead
// heartbeat outside of a restart marks the kernel dead even when the
// process is still running, which covers wedged kernels and attached
// kernels whose process we cannot see.
func (c *Client) onHeartbeat(alive bool) {
	if alive || c.restarting.Load() {
		return
	}
	if c.Status() == StatusDead || c.Status() == StatusStopped {
		return
	}
	c.log.Error().Msg("kernel heartbeat lost")
	c.setStatus(StatusDead)
	c.signalExit(fmt.Errorf("%w: %v", ErrKernelDied, channels.ErrHeartbeatDead))
}

// setExecState maps IOPub execution_state broadcasts onto the client
// status. Only the idle/busy pair moves; lifecycle states such as
// Restarting and Dead are never overridden by broadcasts.
func (c *Client) setExecState(state string) {
	switch state {
	case wire.StateBusy:
		c.transition(StatusIdle, StatusBusy)
	case wire.StateIdle:
		c.transition(StatusBusy, StatusIdle)
	}
}

// Status returns the current kernel status.
func (c *Client) Status() Status {
	return Status(c.status.Load())
}

// transition swaps from → to atomically and reports whether it won.
func (c *Client) transition(from, to Status) bool {
	if !c.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.notifyStatus(to)
	return true
}

func (c *Client) setStatus(s Status) {
	old := Status(c.status.Swap(int32(s)))
	if old != s {
		c.notifyStatus(s)
	}
}

func (c *Client) notifyStatus(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

// signalExit records the first terminal error, wakes blocked requests,
// and delivers the error to ExitChannel.
func (c *Client) signalExit(err error) {
	c.exitOnce.Do(func() {
		c.exitErr = err
		close(c.deadCh)
		c.exitCh <- err
	})
}

// ExitChannel reports the first unrecoverable failure: a dead process,
// a lost heartbeat. Supervisors watch it to decide on restarts.
func (c *Client) ExitChannel() <-chan error {
	return c.exitCh
}

// Session returns the client session identifier.
func (c *Client) Session() string { return c.session }

// ConnectionFile returns the path of the connection file in use.
func (c *Client) ConnectionFile() string { return c.connFile }

// ConnectionInfo returns the connection details, or nil before Launch
// or Attach.
func (c *Client) ConnectionInfo() *connection.Info { return c.info }

// Spec returns the kernelspec this client launched from, or nil for
// attached kernels.
func (c *Client) Spec() *kernelspec.Spec { return c.spec }

// Owned reports whether this client launched the kernel process and is
// responsible for reaping it.
func (c *Client) Owned() bool {
	return c.getProc() != nil
}

// PID returns the kernel process id, or 0 for attached kernels.
func (c *Client) PID() int {
	if p := c.getProc(); p != nil {
		return p.PID()
	}
	return 0
}

// KernelInfo returns the kernel_info_reply captured during the
// handshake, or nil before it completes.
func (c *Client) KernelInfo() *wire.KernelInfoReply {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.kernelInfo
}

// Metrics returns the client's metrics collector.
func (c *Client) Metrics() *Metrics { return c.metrics }

func (c *Client) setProc(p *process) {
	c.procMu.Lock()
	c.proc = p
	c.procMu.Unlock()
}

func (c *Client) getProc() *process {
	c.procMu.RLock()
	defer c.procMu.RUnlock()
	return c.proc
}

// procOutput adapts the client logger into a writer for kernel
// process stdout and stderr.
func (c *Client) procOutput(name string) zerolog.Logger {
	return c.log.With().Str("kernel", name).Str("stream", "kernel").Logger()
}

func (c *Client) cleanupFile() {
	if c.ownsFile && c.connFile != "" {
		if err := os.Remove(c.connFile); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", c.connFile).Msg("remove connection file failed")
		}
	}
}

// Close tears the client down: cancels the loops, closes the sockets,
// kills an owned kernel process that is still running, and removes an
// owned connection file. Attached kernels are left running. Close is
// idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
		if p := c.getProc(); p != nil && p.Running() {
			p.Terminate()
			if !p.WaitExit(2 * time.Second) {
				p.Kill()
				p.WaitExit(time.Second)
			}
		}
		if c.group != nil {
			c.group.Wait()
		}
		c.cleanupFile()
		c.setStatus(StatusStopped)
		c.signalExit(nil)
		c.log.Debug().Msg("kernel client closed")
	})
	return nil
}
