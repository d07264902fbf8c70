package kernel

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// SupervisorState represents the state of a supervised kernel.
type SupervisorState int

const (
	// SupervisorStateIdle means the supervisor is not monitoring.
	SupervisorStateIdle SupervisorState = iota
	// SupervisorStateRunning means the kernel is running normally.
	SupervisorStateRunning
	// SupervisorStateRestarting means the kernel died and is being relaunched.
	SupervisorStateRestarting
	// SupervisorStateFailed means the kernel exceeded max restart attempts.
	SupervisorStateFailed
	// SupervisorStateStopped means the supervisor was explicitly stopped.
	SupervisorStateStopped
)

// String returns a human-readable state name.
func (s SupervisorState) String() string {
	switch s {
	case SupervisorStateIdle:
		return "idle"
	case SupervisorStateRunning:
		return "running"
	case SupervisorStateRestarting:
		return "restarting"
	case SupervisorStateFailed:
		return "failed"
	case SupervisorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SupervisorConfig configures the kernel supervisor.
type SupervisorConfig struct {
	// MaxRestarts is the maximum number of restart attempts before giving up.
	// Default: 5
	MaxRestarts int

	// InitialBackoff is the initial backoff duration after a crash.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 60 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier applied to backoff after each failure.
	// Default: 2.0
	BackoffMultiplier float64

	// ResetWindow is the time after which the restart count resets if the
	// kernel has been running successfully.
	// Default: 5 minutes
	ResetWindow time.Duration
}

// DefaultSupervisorConfig returns the default supervisor configuration.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MaxRestarts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		ResetWindow:       5 * time.Minute,
	}
}

// SupervisorEvent represents an event from the supervisor.
type SupervisorEvent struct {
	Type      SupervisorEventType
	Kernel    string
	Error     error
	Attempt   int
	NextRetry time.Duration
}

// SupervisorEventType identifies the type of supervisor event.
type SupervisorEventType int

const (
	// SupervisorEventCrash indicates the kernel died.
	SupervisorEventCrash SupervisorEventType = iota
	// SupervisorEventRestarting indicates a restart attempt is starting.
	SupervisorEventRestarting
	// SupervisorEventRecovered indicates the kernel has recovered.
	SupervisorEventRecovered
	// SupervisorEventFailed indicates the kernel has permanently failed.
	SupervisorEventFailed
)

// String returns a human-readable event type name.
func (t SupervisorEventType) String() string {
	switch t {
	case SupervisorEventCrash:
		return "crash"
	case SupervisorEventRestarting:
		return "restarting"
	case SupervisorEventRecovered:
		return "recovered"
	case SupervisorEventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StartFunc launches a fresh kernel client. The supervisor calls it
// once at Start and again after each crash.
type StartFunc func(ctx context.Context) (*Client, error)

// Supervisor monitors a kernel client and handles crash recovery.
// It relaunches dead kernels with exponential backoff and replays any
// tracked setup code after recovery, so sessions come back with their
// imports in place.
//
// Thread Safety: Supervisor is safe for concurrent use. The state
// field uses atomic operations for lock-free reads. Other fields are
// protected by mu (client management) or setupMu (setup tracking).
type Supervisor struct {
	mu sync.Mutex

	config SupervisorConfig
	kernel string
	start  StartFunc

	// Client management (protected by mu)
	client *Client

	// State tracking (state uses atomic, others protected by mu)
	state        atomic.Int32
	restartCount int
	lastStart    time.Time

	// Setup code replayed after recovery (protected by setupMu)
	setup   []string
	setupMu sync.RWMutex

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	eventCh   chan SupervisorEvent
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewSupervisor creates a new kernel supervisor. The kernel argument
// names the kernel in events; start launches it.
func NewSupervisor(kernel string, start StartFunc, config SupervisorConfig) *Supervisor {
	s := &Supervisor{
		config:  config,
		kernel:  kernel,
		start:   start,
		eventCh: make(chan SupervisorEvent, 16),
	}
	s.state.Store(int32(SupervisorStateIdle))
	return s
}

// Start begins supervision and launches the kernel.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if SupervisorState(s.state.Load()) != SupervisorStateIdle {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.startClientLocked(); err != nil {
		s.state.Store(int32(SupervisorStateFailed))
		return err
	}

	s.state.Store(int32(SupervisorStateRunning))

	go s.monitor()

	return nil
}

// startClientLocked launches the kernel (must hold mu lock).
func (s *Supervisor) startClientLocked() error {
	client, err := s.start(s.ctx)
	if err != nil {
		return err
	}

	s.client = client
	s.lastStart = time.Now()

	return nil
}

// monitor watches for kernel death and handles restarts.
// This is the main supervision loop that runs in its own goroutine.
func (s *Supervisor) monitor() {
	for {
		s.mu.Lock()
		client := s.client
		s.mu.Unlock()

		if client == nil {
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case exitErr := <-client.ExitChannel():
			if exitErr == nil {
				// Clean close, nothing to recover.
				return
			}
			// Reap the corpse before relaunching.
			client.Close()
			if !s.handleCrashWithRetry(exitErr) {
				return
			}
		}
	}
}

// handleCrashWithRetry handles a kernel crash with retry logic.
// Returns true if the kernel recovered, false if permanently failed or
// stopped.
func (s *Supervisor) handleCrashWithRetry(initialErr error) bool {
	exitErr := initialErr

	for {
		s.mu.Lock()

		if SupervisorState(s.state.Load()) == SupervisorStateStopped {
			s.mu.Unlock()
			return false
		}

		// A kernel that ran long enough earns a fresh restart budget.
		if time.Since(s.lastStart) > s.config.ResetWindow {
			s.restartCount = 0
		}

		s.restartCount++

		s.emitEventLocked(SupervisorEvent{
			Type:    SupervisorEventCrash,
			Kernel:  s.kernel,
			Error:   exitErr,
			Attempt: s.restartCount,
		})

		if s.restartCount > s.config.MaxRestarts {
			s.state.Store(int32(SupervisorStateFailed))
			s.emitEventLocked(SupervisorEvent{
				Type:    SupervisorEventFailed,
				Kernel:  s.kernel,
				Error:   exitErr,
				Attempt: s.restartCount,
			})
			s.mu.Unlock()
			return false
		}

		delay := CalculateBackoff(
			s.restartCount,
			s.config.InitialBackoff,
			s.config.MaxBackoff,
			s.config.BackoffMultiplier,
		)

		s.state.Store(int32(SupervisorStateRestarting))
		s.emitEventLocked(SupervisorEvent{
			Type:      SupervisorEventRestarting,
			Kernel:    s.kernel,
			Attempt:   s.restartCount,
			NextRetry: delay,
		})

		s.mu.Unlock()

		// Wait with backoff (without holding lock)
		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(delay):
		}

		s.mu.Lock()

		if SupervisorState(s.state.Load()) == SupervisorStateStopped {
			s.mu.Unlock()
			return false
		}

		err := s.startClientLocked()
		if err != nil {
			exitErr = err
			s.mu.Unlock()
			continue
		}

		s.replaySetupLocked()

		s.state.Store(int32(SupervisorStateRunning))
		s.emitEventLocked(SupervisorEvent{
			Type:    SupervisorEventRecovered,
			Kernel:  s.kernel,
			Attempt: s.restartCount,
		})

		s.mu.Unlock()
		return true
	}
}

// replaySetupLocked re-runs tracked setup code on the recovered
// kernel. Must hold mu lock.
func (s *Supervisor) replaySetupLocked() {
	if s.client == nil {
		return
	}

	s.setupMu.RLock()
	code := make([]string, len(s.setup))
	copy(code, s.setup)
	s.setupMu.RUnlock()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	for _, snippet := range code {
		_, _ = s.client.Execute(ctx, snippet, ExecuteOptions{Silent: true})
	}
}

// emitEventLocked sends an event to listeners (must hold mu or be safe to call).
// Events are dropped if channel is full or closed.
func (s *Supervisor) emitEventLocked(event SupervisorEvent) {
	if s.closed.Load() {
		return
	}
	select {
	case s.eventCh <- event:
	default:
		// Channel full, drop event
	}
}

// Stop stops the supervisor and the kernel.
// ctx must be non-nil; if nil, context.Background() will be used.
func (s *Supervisor) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	state := SupervisorState(s.state.Load())
	if state == SupervisorStateStopped || state == SupervisorStateIdle {
		s.mu.Unlock()
		return nil
	}

	s.state.Store(int32(SupervisorStateStopped))
	client := s.client
	s.client = nil
	s.mu.Unlock()

	// Shut the kernel down before cancelling: the graceful path still
	// needs the client's channels alive.
	if client != nil {
		if err := client.Shutdown(ctx, false); err != nil {
			client.Close()
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.eventCh)
	})

	return nil
}

// State returns the current supervisor state.
func (s *Supervisor) State() SupervisorState {
	return SupervisorState(s.state.Load())
}

// Client returns the current kernel client (may be nil during restart).
func (s *Supervisor) Client() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// RestartCount returns the number of restart attempts since the last reset.
func (s *Supervisor) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartCount
}

// Events returns the event channel for monitoring supervisor events.
// The channel is closed when the supervisor is stopped.
func (s *Supervisor) Events() <-chan SupervisorEvent {
	return s.eventCh
}

// Kernel returns the kernel name this supervisor handles.
func (s *Supervisor) Kernel() string {
	return s.kernel
}

// IsReady returns true if the kernel is ready to accept requests.
func (s *Supervisor) IsReady() bool {
	if SupervisorState(s.state.Load()) != SupervisorStateRunning {
		return false
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	return client != nil && client.Status().Alive()
}

// --- Setup Code Tracking ---

// TrackSetup records a code snippet to replay after crash recovery,
// typically imports and environment setup the session depends on.
func (s *Supervisor) TrackSetup(code string) {
	s.setupMu.Lock()
	s.setup = append(s.setup, code)
	s.setupMu.Unlock()
}

// ClearSetup drops all tracked setup code.
func (s *Supervisor) ClearSetup() {
	s.setupMu.Lock()
	s.setup = nil
	s.setupMu.Unlock()
}

// TrackedSetup returns the tracked setup snippets in replay order.
func (s *Supervisor) TrackedSetup() []string {
	s.setupMu.RLock()
	defer s.setupMu.RUnlock()

	code := make([]string, len(s.setup))
	copy(code, s.setup)
	return code
}

// --- Statistics ---

// SupervisorStats provides statistics about the supervisor.
type SupervisorStats struct {
	State          SupervisorState
	RestartCount   int
	LastStartTime  time.Time
	CurrentBackoff time.Duration
	TrackedSetup   int
}

// Stats returns current supervisor statistics.
func (s *Supervisor) Stats() SupervisorStats {
	s.mu.Lock()
	restartCount := s.restartCount
	lastStart := s.lastStart
	s.mu.Unlock()

	s.setupMu.RLock()
	setupCount := len(s.setup)
	s.setupMu.RUnlock()

	currentBackoff := CalculateBackoff(
		restartCount,
		s.config.InitialBackoff,
		s.config.MaxBackoff,
		s.config.BackoffMultiplier,
	)

	return SupervisorStats{
		State:          SupervisorState(s.state.Load()),
		RestartCount:   restartCount,
		LastStartTime:  lastStart,
		CurrentBackoff: currentBackoff,
		TrackedSetup:   setupCount,
	}
}

// CalculateBackoff calculates the backoff duration for a given attempt.
// attempt=0 or attempt=1 returns initial, subsequent attempts use exponential growth.
func CalculateBackoff(attempt int, initial, max time.Duration, multiplier float64) time.Duration {
	if attempt <= 1 {
		return initial
	}

	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(max) {
		return max
	}
	return time.Duration(delay)
}
