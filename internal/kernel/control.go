package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bengtfrost/nbkernel/internal/wire"
)

// Interrupt stops the code currently running on the kernel.
//
// For kernels we launched whose spec uses signal interrupts, SIGINT is
// delivered to the kernel's process group. Kernels that declare
// interrupt_mode "message", and kernels we only attached to, get an
// interrupt_request on the control channel, which bypasses the busy
// shell queue.
func (c *Client) Interrupt(ctx context.Context) error {
	if !c.Status().Alive() {
		return ErrNotRunning
	}
	c.metrics.RecordInterrupt()

	proc := c.getProc()
	viaMessage := c.spec != nil && c.spec.InterruptsViaMessage()
	if proc != nil && !viaMessage {
		err := proc.Interrupt()
		if err == nil {
			c.log.Info().Int("pid", proc.PID()).Msg("interrupt signal sent")
			return nil
		}
		if !errors.Is(err, ErrInterruptUnsupported) {
			return fmt.Errorf("interrupt kernel: %w", err)
		}
		// No signal delivery on this platform; fall through to the
		// protocol path.
	}

	msg, err := wire.NewMessage(c.session, wire.MsgTypeInterruptRequest, nil)
	if err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	reply, err := c.requestControl(rctx, msg)
	if err != nil {
		return fmt.Errorf("interrupt_request: %w", err)
	}
	var rep wire.InterruptReply
	if err := reply.DecodeContent(&rep); err != nil {
		return fmt.Errorf("decode interrupt_reply: %w", err)
	}
	if rep.Status != "" && rep.Status != wire.StatusOK {
		return fmt.Errorf("interrupt_request refused: status %q", rep.Status)
	}
	c.log.Info().Msg("interrupt request acknowledged")
	return nil
}

// Shutdown asks the kernel to exit and, for owned kernels, reaps the
// process. With restart true the kernel is told to expect a respawn
// and the client is left connected; otherwise the client closes.
func (c *Client) Shutdown(ctx context.Context, restart bool) error {
	if c.Status() == StatusStopped {
		return ErrNotRunning
	}

	msg, err := wire.NewMessage(c.session, wire.MsgTypeShutdownRequest,
		wire.ShutdownRequest{Restart: restart})
	if err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.requestControl(rctx, msg); err != nil {
		// Kernels often exit before replying. The process ladder below
		// still reaps them.
		c.log.Debug().Err(err).Msg("no shutdown_reply")
	}

	if proc := c.getProc(); proc != nil {
		c.reap(proc)
	}
	if !restart {
		return c.Close()
	}
	return nil
}

// reap waits briefly for a voluntary exit, then escalates through
// SIGTERM to SIGKILL.
func (c *Client) reap(proc *process) {
	if proc.WaitExit(5 * time.Second) {
		return
	}
	c.log.Warn().Int("pid", proc.PID()).Msg("kernel ignored shutdown; terminating")
	proc.Terminate()
	if proc.WaitExit(2 * time.Second) {
		return
	}
	proc.Kill()
	proc.WaitExit(time.Second)
}

// Restart shuts the kernel down and starts a fresh process on the same
// connection file, so the channels survive across the restart. All
// execution state in the kernel is lost; the counter begins again at
// one.
//
// Only kernels this client launched can be restarted. Attached kernels
// belong to whoever started them, and get ErrNotOwned.
func (c *Client) Restart(ctx context.Context) error {
	if c.getProc() == nil {
		return ErrNotOwned
	}
	if !c.restarting.CompareAndSwap(false, true) {
		return fmt.Errorf("restart already in progress")
	}
	defer c.restarting.Store(false)

	c.setStatus(StatusRestarting)
	c.metrics.RecordRestart()
	c.log.Info().Msg("restarting kernel")

	if err := c.Shutdown(ctx, true); err != nil && !errors.Is(err, ErrNotRunning) {
		c.log.Warn().Err(err).Msg("shutdown before restart failed")
	}

	argv := c.spec.Command(c.connFile, c.resourceDir)
	proc, err := startProcess(argv, c.spec.Env, c.procOutput(c.info.KernelName))
	if err != nil {
		c.setStatus(StatusDead)
		c.signalExit(fmt.Errorf("%w: restart spawn failed: %v", ErrKernelDied, err))
		return fmt.Errorf("restart kernel: %w", err)
	}
	c.setProc(proc)
	go c.watchProcess(proc)

	c.iopubSeen.Store(false)
	if err := c.handshake(ctx); err != nil {
		c.setStatus(StatusDead)
		c.signalExit(fmt.Errorf("%w: restart handshake failed: %v", ErrKernelDied, err))
		return err
	}
	c.log.Info().Int("pid", proc.PID()).Msg("kernel restarted")
	return nil
}

// IsComplete asks the kernel whether code forms a complete statement.
// It returns the kernel's verdict (complete, incomplete, invalid or
// unknown) and, for incomplete code, the suggested continuation
// indent.
func (c *Client) IsComplete(ctx context.Context, code string) (*wire.IsCompleteReply, error) {
	if !c.Status().Alive() {
		return nil, ErrNotRunning
	}
	msg, err := wire.NewMessage(c.session, wire.MsgTypeIsCompleteRequest,
		wire.IsCompleteRequest{Code: code})
	if err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	reply, err := c.requestShell(rctx, msg)
	if err != nil {
		return nil, fmt.Errorf("is_complete_request: %w", err)
	}
	var rep wire.IsCompleteReply
	if err := reply.DecodeContent(&rep); err != nil {
		return nil, fmt.Errorf("decode is_complete_reply: %w", err)
	}
	return &rep, nil
}

// Complete asks the kernel for completions of code at cursorPos.
func (c *Client) Complete(ctx context.Context, code string, cursorPos int) (*wire.CompleteReply, error) {
	if !c.Status().Alive() {
		return nil, ErrNotRunning
	}
	msg, err := wire.NewMessage(c.session, wire.MsgTypeCompleteRequest,
		wire.CompleteRequest{Code: code, CursorPos: cursorPos})
	if err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	reply, err := c.requestShell(rctx, msg)
	if err != nil {
		return nil, fmt.Errorf("complete_request: %w", err)
	}
	var rep wire.CompleteReply
	if err := reply.DecodeContent(&rep); err != nil {
		return nil, fmt.Errorf("decode complete_reply: %w", err)
	}
	return &rep, nil
}
