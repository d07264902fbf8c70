package kernel

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// procState tracks where a kernel process is in its lifecycle.
type procState int32

const (
	procCreated procState = iota
	procRunning
	procExited
)

// process wraps a launched kernel's OS process with exit tracking. The
// kernel is placed in its own process group so signal-mode interrupts
// reach helpers it spawned, not us.
type process struct {
	cmd     *exec.Cmd
	started time.Time

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	exitErr  error
	mu       sync.RWMutex
	waitOnce sync.Once
}

// startProcess launches argv with the merged environment. Kernel stdout
// and stderr go to output, typically a logger.
func startProcess(argv []string, extraEnv map[string]string, output io.Writer) (*process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty kernel command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	for k, v := range extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if output != nil {
		cmd.Stdout = output
		cmd.Stderr = output
	}
	setProcessGroup(cmd)

	p := &process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	p.state.Store(int32(procCreated))
	p.exitCode.Store(-1)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start kernel %s: %w", argv[0], err)
	}
	p.started = time.Now()
	p.state.Store(int32(procRunning))

	go p.waitLoop()
	return p, nil
}

// waitLoop reaps the process and records how it went.
func (p *process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		code := 0
		if err != nil {
			code = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		}
		p.exitCode.Store(int32(code))
		p.state.Store(int32(procExited))
		close(p.done)
	})
}

// Done is closed when the process exits.
func (p *process) Done() <-chan struct{} { return p.done }

// Running reports whether the process is still alive.
func (p *process) Running() bool { return procState(p.state.Load()) == procRunning }

// PID returns the process ID, or -1 before start.
func (p *process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// ExitCode returns the exit code, or -1 while running.
func (p *process) ExitCode() int { return int(p.exitCode.Load()) }

// ExitError returns the error cmd.Wait reported, if any.
func (p *process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Interrupt delivers SIGINT to the kernel's process group.
func (p *process) Interrupt() error {
	if !p.Running() {
		return ErrNotRunning
	}
	return interruptGroup(p.cmd)
}

// Terminate asks the process to exit.
func (p *process) Terminate() error {
	if !p.Running() {
		return ErrNotRunning
	}
	return terminateProcess(p.cmd)
}

// Kill forcibly ends the process.
func (p *process) Kill() error {
	if !p.Running() {
		return ErrNotRunning
	}
	return p.cmd.Process.Kill()
}

// WaitExit blocks until exit or the timeout, reporting whether the process
// ended in time.
func (p *process) WaitExit(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Runtime returns how long the process has run.
func (p *process) Runtime() time.Duration {
	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started)
}
