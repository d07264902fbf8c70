package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix shared by all recognized environment variables.
const EnvPrefix = "NBKERNEL_"

// DefaultPath returns the standard config file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nbkernel", "nbkernel.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nbkernel", "nbkernel.toml"), nil
}

// Load resolves the configuration. With an explicit path the file must
// exist; with an empty path the default location is used and a missing
// file is fine. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	required := path != ""
	if !required {
		defaultPath, err := DefaultPath()
		if err == nil {
			path = defaultPath
		}
	}

	if path != "" {
		if err := cfg.loadFile(path, required); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges one TOML file into the configuration.
func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parsing %s:\n%s", path, strict.String())
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays NBKERNEL_ environment variables onto the
// configuration.
func (c *Config) applyEnv() error {
	bindings := []struct {
		name  string
		apply func(string) error
	}{
		{"NBKERNEL_DEFAULT_KERNEL", bindString(&c.DefaultKernel)},
		{"NBKERNEL_LOG_LEVEL", bindString(&c.LogLevel)},
		{"NBKERNEL_KERNEL_STARTUP_TIMEOUT", bindDuration(&c.Kernel.StartupTimeout)},
		{"NBKERNEL_KERNEL_REQUEST_TIMEOUT", bindDuration(&c.Kernel.RequestTimeout)},
		{"NBKERNEL_KERNEL_SHUTDOWN_TIMEOUT", bindDuration(&c.Kernel.ShutdownTimeout)},
		{"NBKERNEL_KERNEL_HEARTBEAT_INTERVAL", bindDuration(&c.Kernel.HeartbeatInterval)},
		{"NBKERNEL_KERNEL_HEARTBEAT_MISSES", bindInt(&c.Kernel.HeartbeatMisses)},
		{"NBKERNEL_SESSION_AUTO_SYNC", bindBool(&c.Session.AutoSync)},
		{"NBKERNEL_SESSION_STOP_ON_ERROR", bindBool(&c.Session.StopOnError)},
		{"NBKERNEL_SESSION_WATCH", bindBool(&c.Session.Watch)},
		{"NBKERNEL_SESSION_WATCH_DEBOUNCE", bindDuration(&c.Session.WatchDebounce)},
		{"NBKERNEL_NAVIGATE_INCLUDE_MARKDOWN", bindBool(&c.Navigate.IncludeMarkdown)},
		{"NBKERNEL_RENDER_COLOR", bindString(&c.Render.Color)},
		{"NBKERNEL_RENDER_WIDTH", bindInt(&c.Render.Width)},
	}

	for _, b := range bindings {
		value, ok := os.LookupEnv(b.name)
		if !ok {
			continue
		}
		if err := b.apply(value); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}
	return nil
}

func bindString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func bindDuration(dst *Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = Duration(d)
		return nil
	}
}

func bindInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func bindBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

// parseBool accepts the usual spellings seen in environment variables.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
