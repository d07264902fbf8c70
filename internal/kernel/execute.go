package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bengtfrost/nbkernel/internal/nbformat"
	"github.com/bengtfrost/nbkernel/internal/wire"
)

// ExecuteOptions tunes a single execute request.
type ExecuteOptions struct {
	// Silent asks the kernel not to broadcast execute_input, not to
	// produce execute_result, and not to increment the counter.
	// History is only stored for non-silent requests.
	Silent bool

	// AllowStdin lets the kernel raise input_request prompts. It is
	// forced off when the client has no stdin handler.
	AllowStdin bool

	// StopOnError aborts queued requests after an error.
	StopOnError bool

	// OnOutput is invoked for each output fragment as it arrives:
	// stream fragments before merging, results, display data, errors.
	// It runs on the IOPub reader goroutine and must not block.
	OnOutput func(nbformat.Output)

	// OnClear is invoked when the kernel clears the output area. The
	// argument mirrors clear_output's wait flag.
	OnClear func(wait bool)
}

// Result is the outcome of one execute request.
type Result struct {
	// Status is ok, error, or aborted.
	Status string

	// ExecutionCount is the kernel's counter for this request, zero
	// for silent requests.
	ExecutionCount int

	// Outputs holds the collected outputs in notebook form: adjacent
	// stream writes merged, display updates applied, clears honored.
	Outputs []nbformat.Output

	// Err carries the exception for Status "error".
	Err *wire.ErrorContent

	Duration time.Duration
}

// Errored reports whether the kernel raised an exception.
func (r *Result) Errored() bool { return r.Status == wire.StatusError }

// execution collects the IOPub fallout of one execute request.
type execution struct {
	parent string
	log    zerolog.Logger

	mu           sync.Mutex
	outputs      []nbformat.Output
	displayIdx   map[string]int
	clearPending bool
	execCount    int
	errContent   *wire.ErrorContent

	onOutput func(nbformat.Output)
	onClear  func(bool)
	metrics  *Metrics

	idle     chan struct{}
	idleOnce sync.Once
}

func newExecution(parent string, opts ExecuteOptions, m *Metrics, log zerolog.Logger) *execution {
	return &execution{
		parent:     parent,
		log:        log,
		displayIdx: make(map[string]int),
		onOutput:   opts.OnOutput,
		onClear:    opts.OnClear,
		metrics:    m,
		idle:       make(chan struct{}),
	}
}

// handle processes one IOPub message published for this execution.
func (e *execution) handle(msg *wire.Message) {
	switch msg.Type() {
	case wire.MsgTypeStatus:
		var st wire.Status
		if msg.DecodeContent(&st) == nil && st.ExecutionState == wire.StateIdle {
			e.idleOnce.Do(func() { close(e.idle) })
		}

	case wire.MsgTypeExecuteInput:
		var in wire.ExecuteInput
		if msg.DecodeContent(&in) == nil {
			e.mu.Lock()
			e.execCount = in.ExecutionCount
			e.mu.Unlock()
		}

	case wire.MsgTypeStream:
		var s wire.Stream
		if err := msg.DecodeContent(&s); err != nil {
			e.log.Warn().Err(err).Msg("bad stream message")
			return
		}
		e.metrics.RecordStream(len(s.Text))
		e.mu.Lock()
		e.maybeClearLocked()
		e.outputs = nbformat.AppendStream(e.outputs, s.Name, s.Text)
		e.mu.Unlock()
		e.notify(nbformat.Stream(s.Name, s.Text))

	case wire.MsgTypeExecuteResult:
		var r wire.ExecuteResult
		if err := msg.DecodeContent(&r); err != nil {
			e.log.Warn().Err(err).Msg("bad execute_result message")
			return
		}
		out := nbformat.ExecuteResult(r.ExecutionCount, nbformat.MIMEBundle(r.Data), r.Metadata)
		e.append(out, "")
		e.notify(out)

	case wire.MsgTypeDisplayData:
		var d wire.DisplayData
		if err := msg.DecodeContent(&d); err != nil {
			e.log.Warn().Err(err).Msg("bad display_data message")
			return
		}
		out := nbformat.DisplayData(nbformat.MIMEBundle(d.Data), d.Metadata)
		e.append(out, d.Transient.DisplayID)
		e.notify(out)

	case wire.MsgTypeUpdateDisplayData:
		var d wire.DisplayData
		if err := msg.DecodeContent(&d); err != nil {
			e.log.Warn().Err(err).Msg("bad update_display_data message")
			return
		}
		e.updateDisplay(d)

	case wire.MsgTypeError:
		var ec wire.ErrorContent
		if err := msg.DecodeContent(&ec); err != nil {
			e.log.Warn().Err(err).Msg("bad error message")
			return
		}
		out := nbformat.ErrorOutput(ec.EName, ec.EValue, ec.Traceback)
		e.mu.Lock()
		e.maybeClearLocked()
		e.outputs = append(e.outputs, out)
		e.errContent = &ec
		e.mu.Unlock()
		e.notify(out)

	case wire.MsgTypeClearOutput:
		var co wire.ClearOutput
		if err := msg.DecodeContent(&co); err != nil {
			return
		}
		e.mu.Lock()
		if co.Wait {
			e.clearPending = true
		} else {
			e.clearLocked()
		}
		e.mu.Unlock()
		if e.onClear != nil {
			e.onClear(co.Wait)
		}
	}
}

// append stores a display-style output, tracking its display_id so a
// later update_display_data can replace it in place.
func (e *execution) append(out nbformat.Output, displayID string) {
	e.mu.Lock()
	e.maybeClearLocked()
	e.outputs = append(e.outputs, out)
	if displayID != "" {
		e.displayIdx[displayID] = len(e.outputs) - 1
	}
	e.mu.Unlock()
}

// updateDisplay replaces the output previously published under the
// same display_id. Updates for unknown ids are dropped; the original
// was shown by some other client.
func (e *execution) updateDisplay(d wire.DisplayData) {
	id := d.Transient.DisplayID
	if id == "" {
		return
	}
	e.mu.Lock()
	idx, ok := e.displayIdx[id]
	if ok && idx < len(e.outputs) {
		e.outputs[idx].Data = nbformat.MIMEBundle(d.Data)
		e.outputs[idx].Metadata = d.Metadata
	}
	e.mu.Unlock()
	if ok {
		e.notify(nbformat.DisplayData(nbformat.MIMEBundle(d.Data), d.Metadata))
	}
}

// maybeClearLocked applies a deferred clear_output just before the
// next output lands. Callers hold e.mu.
func (e *execution) maybeClearLocked() {
	if e.clearPending {
		e.clearLocked()
		e.clearPending = false
	}
}

func (e *execution) clearLocked() {
	e.outputs = nil
	e.displayIdx = make(map[string]int)
}

func (e *execution) notify(out nbformat.Output) {
	if e.onOutput != nil {
		e.onOutput(out)
	}
}

// snapshot returns the collected outputs and counter.
func (e *execution) snapshot() ([]nbformat.Output, int, *wire.ErrorContent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	outs := make([]nbformat.Output, len(e.outputs))
	copy(outs, e.outputs)
	return outs, e.execCount, e.errContent
}

// Execute runs code on the kernel and collects its outputs. Exactly
// one execute may be in flight per client; concurrent calls fail with
// ErrBusy instead of queueing, so callers keep control over ordering.
//
// The call returns once the kernel has both replied on the shell
// channel and broadcast idle for this request, meaning every output
// has been published. A kernel exception is not an error here: the
// Result carries it.
func (c *Client) Execute(ctx context.Context, code string, opts ExecuteOptions) (*Result, error) {
	if !c.Status().Alive() || c.conn == nil {
		return nil, ErrNotRunning
	}
	if !c.executing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.executing.Store(false)

	req := wire.ExecuteRequest{
		Code:            code,
		Silent:          opts.Silent,
		StoreHistory:    !opts.Silent,
		UserExpressions: map[string]any{},
		AllowStdin:      opts.AllowStdin && c.stdinHandler != nil,
		StopOnError:     opts.StopOnError,
	}
	msg, err := wire.NewMessage(c.session, wire.MsgTypeExecuteRequest, req)
	if err != nil {
		return nil, err
	}

	ex := newExecution(msg.Header.MsgID, opts, c.metrics, c.log)
	c.currentMu.Lock()
	c.current = ex
	c.currentMu.Unlock()
	defer func() {
		c.currentMu.Lock()
		c.current = nil
		c.currentMu.Unlock()
	}()

	start := time.Now()
	ch := c.register(c.pendingShell, msg.Header.MsgID)
	defer c.unregister(c.pendingShell, msg.Header.MsgID)
	if err := c.conn.SendShell(msg); err != nil {
		return nil, fmt.Errorf("send execute_request: %w", err)
	}

	// User code runs as long as it runs: the reply wait is bounded by
	// the caller's context, not by RequestTimeout.
	var reply *wire.Message
	select {
	case reply = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.deadCh:
		return nil, c.deadErr()
	}

	// The reply can race the final broadcasts; wait for idle so the
	// output set is complete.
	select {
	case <-ex.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.deadCh:
		return nil, c.deadErr()
	case <-time.After(iopubGrace):
		c.log.Warn().Str("msg_id", msg.Header.MsgID).Msg("no idle broadcast after reply")
	}
	duration := time.Since(start)

	var rep wire.ExecuteReply
	if err := reply.DecodeContent(&rep); err != nil {
		return nil, fmt.Errorf("decode execute_reply: %w", err)
	}

	outs, count, errContent := ex.snapshot()
	if rep.ExecutionCount > count {
		count = rep.ExecutionCount
	}
	res := &Result{
		Status:         rep.Status,
		ExecutionCount: count,
		Outputs:        outs,
		Err:            errContent,
		Duration:       duration,
	}
	c.metrics.RecordExecution(duration, res.Errored())
	c.log.Debug().
		Str("status", rep.Status).
		Int("execution_count", count).
		Int("outputs", len(outs)).
		Dur("duration", duration).
		Msg("execute complete")
	return res, nil
}
