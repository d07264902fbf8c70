package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateConfigDir points the default config location at a fresh
// directory so resolution never sees a developer's real file.
func isolateConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nbkernel.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.Kernel.StartupTimeout.Std() != 60*time.Second {
		t.Errorf("StartupTimeout = %v, want 60s", cfg.Kernel.StartupTimeout.Std())
	}
	if cfg.Kernel.HeartbeatMisses != 3 {
		t.Errorf("HeartbeatMisses = %d, want 3", cfg.Kernel.HeartbeatMisses)
	}
	if cfg.Session.AutoSync {
		t.Error("AutoSync should default to false")
	}
	if !cfg.Session.StopOnError {
		t.Error("StopOnError should default to true")
	}
	if cfg.Render.Color != "auto" {
		t.Errorf("Color = %q, want %q", cfg.Render.Color, "auto")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolateConfigDir(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, "warn")
	}
}

func TestLoad_DefaultLocation(t *testing.T) {
	dir := isolateConfigDir(t)

	path := filepath.Join(dir, "nbkernel")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	content := "log_level = \"debug\"\n"
	if err := os.WriteFile(filepath.Join(path, "nbkernel.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_File(t *testing.T) {
	isolateConfigDir(t)

	path := writeConfig(t, `
default_kernel = "python3"
log_level = "info"

[kernel]
startup_timeout = "90s"
heartbeat_misses = 5

[session]
auto_sync = true
watch_debounce = "250ms"

[render]
color = "never"
width = 100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultKernel != "python3" {
		t.Errorf("DefaultKernel = %q, want %q", cfg.DefaultKernel, "python3")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Kernel.StartupTimeout.Std() != 90*time.Second {
		t.Errorf("StartupTimeout = %v, want 90s", cfg.Kernel.StartupTimeout.Std())
	}
	if cfg.Kernel.HeartbeatMisses != 5 {
		t.Errorf("HeartbeatMisses = %d, want 5", cfg.Kernel.HeartbeatMisses)
	}
	if !cfg.Session.AutoSync {
		t.Error("AutoSync should be true")
	}
	if cfg.Session.WatchDebounce.Std() != 250*time.Millisecond {
		t.Errorf("WatchDebounce = %v, want 250ms", cfg.Session.WatchDebounce.Std())
	}
	if cfg.Render.Color != "never" {
		t.Errorf("Color = %q, want %q", cfg.Render.Color, "never")
	}
	if cfg.Render.Width != 100 {
		t.Errorf("Width = %d, want 100", cfg.Render.Width)
	}

	// Untouched values keep their defaults.
	if cfg.Kernel.RequestTimeout.Std() != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want default 30s", cfg.Kernel.RequestTimeout.Std())
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolateConfigDir(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("Load should fail for a missing explicit path")
	}
}

func TestLoad_BadTOML(t *testing.T) {
	isolateConfigDir(t)

	path := writeConfig(t, "log_level = [broken\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should fail for malformed TOML")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should name the file", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	isolateConfigDir(t)

	path := writeConfig(t, "log_levle = \"info\"\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should reject unknown keys")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolateConfigDir(t)

	path := writeConfig(t, "log_level = \"info\"\n")

	t.Setenv("NBKERNEL_LOG_LEVEL", "debug")
	t.Setenv("NBKERNEL_KERNEL_STARTUP_TIMEOUT", "2m")
	t.Setenv("NBKERNEL_SESSION_AUTO_SYNC", "yes")
	t.Setenv("NBKERNEL_RENDER_WIDTH", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want env override %q", cfg.LogLevel, "debug")
	}
	if cfg.Kernel.StartupTimeout.Std() != 2*time.Minute {
		t.Errorf("StartupTimeout = %v, want 2m", cfg.Kernel.StartupTimeout.Std())
	}
	if !cfg.Session.AutoSync {
		t.Error("AutoSync should be true from env")
	}
	if cfg.Render.Width != 120 {
		t.Errorf("Width = %d, want 120", cfg.Render.Width)
	}
}

func TestLoad_EnvInvalid(t *testing.T) {
	isolateConfigDir(t)

	t.Setenv("NBKERNEL_KERNEL_HEARTBEAT_MISSES", "lots")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load should fail for an unparseable env value")
	}
	if !strings.Contains(err.Error(), "NBKERNEL_KERNEL_HEARTBEAT_MISSES") {
		t.Errorf("error %q should name the variable", err)
	}
}

func TestLoad_ValidateRejects(t *testing.T) {
	isolateConfigDir(t)

	path := writeConfig(t, "[render]\ncolor = \"sometimes\"\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Load error = %v, want ErrInvalidValue", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"zero startup timeout", func(c *Config) { c.Kernel.StartupTimeout = 0 }, false},
		{"zero heartbeat misses", func(c *Config) { c.Kernel.HeartbeatMisses = 0 }, false},
		{"negative debounce", func(c *Config) { c.Session.WatchDebounce = Duration(-time.Second) }, false},
		{"negative width", func(c *Config) { c.Render.Width = -1 }, false},
		{"color always", func(c *Config) { c.Render.Color = "always" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Validate error = %v, want ErrInvalidValue", err)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"YES", true, false},
		{"on", true, false},
		{"1", true, false},
		{"false", false, false},
		{"No", false, false},
		{"off", false, false},
		{"0", false, false},
		{" true ", true, false},
		{"enabled", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		got, err := parseBool(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBool(%q) should fail", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBool(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("duration = %v, want 1m30s", d.Std())
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != "1m30s" {
		t.Errorf("MarshalText = %q, want %q", text, "1m30s")
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText should reject non-durations")
	}
}

func TestDefaultPath(t *testing.T) {
	dir := isolateConfigDir(t)

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath failed: %v", err)
	}
	want := filepath.Join(dir, "nbkernel", "nbkernel.toml")
	if path != want {
		t.Errorf("DefaultPath = %q, want %q", path, want)
	}
}
