package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers debounced change events for registered files.
type Watcher struct {
	mu sync.Mutex

	fs     *fsnotify.Watcher
	config Config

	// Registered files and their parent directory refcounts. The
	// fsnotify watch sits on the directory, never on the file.
	files map[string]bool
	dirs  map[string]int

	// Per-path debounce state.
	pending map[string]*pendingEvent

	events chan Event
	errors chan error

	startTime   time.Time
	totalEvents atomic.Int64
	totalErrors atomic.Int64
	lastError   error

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// pendingEvent tracks one file waiting out its debounce window.
type pendingEvent struct {
	ops       Op
	timestamp time.Time
	timer     *time.Timer
}

// New creates a watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:        fs,
		config:    config,
		files:     make(map[string]bool),
		dirs:      make(map[string]int),
		pending:   make(map[string]*pendingEvent),
		events:    make(chan Event, config.BufferSize),
		errors:    make(chan error, config.BufferSize),
		startTime: time.Now(),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processLoop()

	return w, nil
}

// Add registers a file for change notifications.
// Returns ErrAlreadyWatching if the file is already registered.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[abs] {
		return ErrAlreadyWatching
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Remove unregisters a file.
// Returns ErrNotWatching if the file is not registered.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.files[abs] {
		return ErrNotWatching
	}

	delete(w.files, abs)
	if p, ok := w.pending[abs]; ok {
		p.timer.Stop()
		delete(w.pending, abs)
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] <= 1 {
		delete(w.dirs, dir)
		// The directory may already be gone; its watch went with it.
		if err := w.fs.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			return err
		}
	} else {
		w.dirs[dir]--
	}
	return nil
}

// Events returns the channel of debounced change events.
// The channel is closed when the watcher is closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
// The channel is closed when the watcher is closed.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsWatching returns true if the file is registered.
func (w *Watcher) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[abs]
}

// WatchedPaths returns all registered files.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	return paths
}

// Stats returns watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Stats{
		WatchedPaths:  len(w.files),
		PendingEvents: len(w.pending),
		TotalEvents:   w.totalEvents.Load(),
		Errors:        w.totalErrors.Load(),
		LastError:     w.lastError,
		StartTime:     w.startTime,
	}
}

// Flush immediately fires all pending events without waiting out their
// debounce windows.
func (w *Watcher) Flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path, p := range w.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		w.fire(path)
	}
}

// Close stops the watcher and releases resources.
// After Close, the Events and Errors channels are closed.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)

	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.fs.Close()
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return err
}

// processLoop handles incoming fsnotify events until the watcher closes.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.recordError(err)
			w.sendError(err)
		}
	}
}

// handleFSEvent folds an fsnotify event into the debounce state of the
// registered file it concerns, if any.
func (w *Watcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	path := filepath.Clean(fsEvent.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.files[path] {
		return
	}

	now := time.Now()
	if p, exists := w.pending[path]; exists {
		p.ops |= op
		p.timestamp = now
		p.timer.Reset(w.config.Debounce)
		return
	}

	p := &pendingEvent{ops: op, timestamp: now}
	p.timer = time.AfterFunc(w.config.Debounce, func() {
		w.fire(path)
	})
	w.pending[path] = p
}

// fire delivers a pending event and removes it from the map. The send
// happens under the lock so it cannot race Close closing the channel;
// it never blocks because a full channel drops the event.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, exists := w.pending[path]
	if !exists {
		return
	}
	delete(w.pending, path)
	if w.closed {
		return
	}

	select {
	case w.events <- Event{Path: path, Op: p.ops, Timestamp: p.timestamp}:
		w.totalEvents.Add(1)
	default:
		w.totalErrors.Add(1)
		w.lastError = errors.New("event channel full, dropping event")
	}
}

// sendError forwards an error to the output channel, dropping it if the
// channel is full.
func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	case <-w.closeCh:
	default:
	}
}

// recordError records an error in stats.
func (w *Watcher) recordError(err error) {
	w.totalErrors.Add(1)
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

// convertOp converts fsnotify.Op to watch.Op.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}
