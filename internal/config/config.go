package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidValue indicates a configuration value outside its allowed
// range or set.
var ErrInvalidValue = errors.New("invalid configuration value")

// Duration wraps time.Duration so TOML and environment values can be
// written as strings like "30s" or "1m30s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root of the nbkernel configuration.
type Config struct {
	// DefaultKernel is the kernelspec used when a notebook does not name
	// one and no --kernel flag is given.
	DefaultKernel string `toml:"default_kernel"`

	// LogLevel controls log verbosity ("trace", "debug", "info", "warn",
	// "error", "off").
	LogLevel string `toml:"log_level"`

	Kernel   KernelConfig   `toml:"kernel"`
	Session  SessionConfig  `toml:"session"`
	Navigate NavigateConfig `toml:"navigate"`
	Render   RenderConfig   `toml:"render"`
}

// KernelConfig holds kernel lifecycle settings.
type KernelConfig struct {
	// StartupTimeout bounds the launch handshake.
	StartupTimeout Duration `toml:"startup_timeout"`

	// RequestTimeout bounds non-execute requests such as interrupt and
	// kernel_info.
	RequestTimeout Duration `toml:"request_timeout"`

	// ShutdownTimeout bounds the graceful shutdown exchange before the
	// process is signalled.
	ShutdownTimeout Duration `toml:"shutdown_timeout"`

	// HeartbeatInterval is the gap between heartbeat pings.
	HeartbeatInterval Duration `toml:"heartbeat_interval"`

	// HeartbeatMisses is how many consecutive missed pings mark the
	// kernel dead.
	HeartbeatMisses int `toml:"heartbeat_misses"`
}

// SessionConfig holds notebook session settings.
type SessionConfig struct {
	// AutoSync writes staged outputs to disk after every cell evaluation.
	AutoSync bool `toml:"auto_sync"`

	// StopOnError aborts run-all at the first failing cell.
	StopOnError bool `toml:"stop_on_error"`

	// Watch reloads the notebook when it changes on disk.
	Watch bool `toml:"watch"`

	// WatchDebounce is the quiet window before a disk change is acted on.
	WatchDebounce Duration `toml:"watch_debounce"`
}

// NavigateConfig holds cell navigation settings.
type NavigateConfig struct {
	// IncludeMarkdown makes next/previous-cell stop at markdown cells
	// instead of skipping to the next code cell.
	IncludeMarkdown bool `toml:"include_markdown"`
}

// RenderConfig holds output rendering settings.
type RenderConfig struct {
	// Color controls colored output ("auto", "always", "never").
	Color string `toml:"color"`

	// Width is the target terminal width; 0 detects it.
	Width int `toml:"width"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		DefaultKernel: "",
		LogLevel:      "warn",
		Kernel: KernelConfig{
			StartupTimeout:    Duration(60 * time.Second),
			RequestTimeout:    Duration(30 * time.Second),
			ShutdownTimeout:   Duration(5 * time.Second),
			HeartbeatInterval: Duration(3 * time.Second),
			HeartbeatMisses:   3,
		},
		Session: SessionConfig{
			AutoSync:      false,
			StopOnError:   true,
			Watch:         true,
			WatchDebounce: Duration(150 * time.Millisecond),
		},
		Navigate: NavigateConfig{
			IncludeMarkdown: false,
		},
		Render: RenderConfig{
			Color: "auto",
			Width: 0,
		},
	}
}

var logLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"off":   true,
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("%w: log_level %q", ErrInvalidValue, c.LogLevel)
	}
	if c.Kernel.StartupTimeout <= 0 {
		return fmt.Errorf("%w: kernel.startup_timeout must be positive", ErrInvalidValue)
	}
	if c.Kernel.RequestTimeout <= 0 {
		return fmt.Errorf("%w: kernel.request_timeout must be positive", ErrInvalidValue)
	}
	if c.Kernel.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: kernel.shutdown_timeout must be positive", ErrInvalidValue)
	}
	if c.Kernel.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: kernel.heartbeat_interval must be positive", ErrInvalidValue)
	}
	if c.Kernel.HeartbeatMisses < 1 {
		return fmt.Errorf("%w: kernel.heartbeat_misses must be at least 1", ErrInvalidValue)
	}
	if c.Session.WatchDebounce < 0 {
		return fmt.Errorf("%w: session.watch_debounce must not be negative", ErrInvalidValue)
	}
	switch c.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: render.color %q (want auto, always or never)", ErrInvalidValue, c.Render.Color)
	}
	if c.Render.Width < 0 {
		return fmt.Errorf("%w: render.width must not be negative", ErrInvalidValue)
	}
	return nil
}
