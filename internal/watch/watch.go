package watch

import (
	"errors"
	"strings"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("file is already being watched")
	ErrNotWatching     = errors.New("file is not being watched")
	ErrPathNotExist    = errors.New("file does not exist")
)

// Op is a bitmask of file system operations. Debounced events merge the
// operations observed during the quiet window.
type Op uint32

const (
	// OpCreate indicates the file was created or renamed into place.
	OpCreate Op = 1 << iota
	// OpWrite indicates the file was written to.
	OpWrite
	// OpRemove indicates the file was removed.
	OpRemove
	// OpRename indicates the file was renamed away.
	OpRename
	// OpChmod indicates file permissions changed.
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpChmod, "CHMOD"},
}

// String returns the set operations joined by "|".
func (op Op) String() string {
	parts := make([]string, 0, len(opNames))
	for _, n := range opNames {
		if op.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Gone reports whether the operations imply the file may no longer exist.
func (op Op) Gone() bool {
	return op.Has(OpRemove) || op.Has(OpRename)
}

// Event is a debounced change notice for one registered file.
type Event struct {
	// Path is the absolute path of the registered file.
	Path string

	// Op holds the operations merged over the debounce window.
	Op Op

	// Timestamp is when the last underlying event arrived.
	Timestamp time.Time
}

// Stats provides watcher status information.
type Stats struct {
	// WatchedPaths is the number of registered files.
	WatchedPaths int

	// PendingEvents is the number of events waiting out their debounce
	// window.
	PendingEvents int

	// TotalEvents is the total number of events delivered.
	TotalEvents int64

	// Errors is the total number of errors encountered.
	Errors int64

	// LastError is the most recent error, if any.
	LastError error

	// StartTime is when the watcher was started.
	StartTime time.Time
}

// Config holds watcher configuration.
type Config struct {
	// Debounce is how long a file must stay quiet before its coalesced
	// event is delivered.
	// Default: 150ms
	Debounce time.Duration

	// BufferSize is the capacity of the event and error channels.
	// Default: 64
	BufferSize int
}

// DefaultConfig returns a Config with the default debounce window and
// channel capacity.
func DefaultConfig() Config {
	return Config{
		Debounce:   150 * time.Millisecond,
		BufferSize: 64,
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Config) {
		c.Debounce = d
	}
}

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}
