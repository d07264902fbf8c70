package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI invokes one command with captured streams.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// isolateEnv points config and kernelspec resolution at temp
// directories so tests never see the developer's real files. It returns
// the Jupyter data directory kernelspecs install into.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("JUPYTER_DATA_DIR", dataDir)
	t.Setenv("JUPYTER_PATH", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("VIRTUAL_ENV", "")
	t.Setenv("CONDA_PREFIX", "")
	return dataDir
}

func TestRun_NoCommand(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := runCLI(t)
	if code != ExitInvalidInvocation {
		t.Fatalf("exit = %d, want %d", code, ExitInvalidInvocation)
	}
	if !strings.Contains(stderr, "Usage: nbkernel") {
		t.Errorf("stderr missing usage:\n%s", stderr)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := runCLI(t, "frobnicate")
	if code != ExitInvalidInvocation {
		t.Fatalf("exit = %d, want %d", code, ExitInvalidInvocation)
	}
	if !strings.Contains(stderr, `unknown command "frobnicate"`) {
		t.Errorf("stderr missing unknown-command error:\n%s", stderr)
	}
}

func TestRun_Help(t *testing.T) {
	isolateEnv(t)
	code, stdout, _ := runCLI(t, "help")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	for _, cmd := range []string{"kernels", "register", "import", "cells", "clear", "run", "attach"} {
		if !strings.Contains(stdout, cmd) {
			t.Errorf("usage missing command %q:\n%s", cmd, stdout)
		}
	}
}

func TestRun_HelpFlag(t *testing.T) {
	isolateEnv(t)
	code, stdout, _ := runCLI(t, "-h")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Usage: nbkernel") {
		t.Errorf("stdout missing usage:\n%s", stdout)
	}
}

func TestRun_Version(t *testing.T) {
	isolateEnv(t)
	code, stdout, _ := runCLI(t, "version")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "nbkernel dev") {
		t.Errorf("stdout missing version line:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Commit:") || !strings.Contains(stdout, "Built:") {
		t.Errorf("stdout missing build info:\n%s", stdout)
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	isolateEnv(t)

	t.Run("missing explicit file", func(t *testing.T) {
		code, _, stderr := runCLI(t, "-config", filepath.Join(t.TempDir(), "nope.toml"), "kernels")
		if code != ExitConfigError {
			t.Fatalf("exit = %d, want %d", code, ExitConfigError)
		}
		if !strings.Contains(stderr, "Error:") {
			t.Errorf("stderr missing error:\n%s", stderr)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("log_level = [broken"), 0o644); err != nil {
			t.Fatal(err)
		}
		code, _, _ := runCLI(t, "-config", path, "kernels")
		if code != ExitConfigError {
			t.Fatalf("exit = %d, want %d", code, ExitConfigError)
		}
	})
}

func TestRun_ConfigFileApplies(t *testing.T) {
	dataDir := isolateEnv(t)
	writeSpecDir(t, dataDir, "python3", `{"argv": ["python", "-f", "{connection_file}"], "display_name": "Python 3", "language": "python"}`)

	path := filepath.Join(t.TempDir(), "nbkernel.toml")
	if err := os.WriteFile(path, []byte("default_kernel = \"python3\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, stdout, _ := runCLI(t, "-config", path, "kernels")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "(default)") {
		t.Errorf("configured default kernel not marked:\n%s", stdout)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitExecFailure},
		{"invocation error", invalidInvocationf("bad flag"), ExitInvalidInvocation},
		{"wrapped invocation error", wrapErr(invalidInvocationf("bad")), ExitInvalidInvocation},
		{"custom code", &InvocationError{ExitCode: ExitConfigError, Message: "cfg"}, ExitConfigError},
		{"zero code defaults", &InvocationError{Message: "x"}, ExitInvalidInvocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func wrapErr(err error) error {
	return &wrappedErr{err}
}

type wrappedErr struct{ inner error }

func (w *wrappedErr) Error() string { return "outer: " + w.inner.Error() }
func (w *wrappedErr) Unwrap() error { return w.inner }
