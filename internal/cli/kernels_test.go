package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSpecDir plants a kernel.json under the given Jupyter data dir,
// bypassing the register command.
func writeSpecDir(t *testing.T, dataDir, name, specJSON string) {
	t.Helper()
	dir := filepath.Join(dataDir, "kernels", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kernel.json"), []byte(specJSON), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestKernels_ListsInstalled(t *testing.T) {
	dataDir := isolateEnv(t)
	writeSpecDir(t, dataDir, "python3", `{"argv": ["python", "-f", "{connection_file}"], "display_name": "Python 3", "language": "python"}`)
	writeSpecDir(t, dataDir, "deno", `{"argv": ["deno", "jupyter", "--conn", "{connection_file}"], "display_name": "Deno", "language": "typescript"}`)

	code, stdout, _ := runCLI(t, "kernels")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	for _, want := range []string{"NAME", "python3", "Python 3", "deno", "typescript"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing missing %q:\n%s", want, stdout)
		}
	}
}

func TestKernels_RejectsArguments(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := runCLI(t, "kernels", "extra")
	if code != ExitInvalidInvocation {
		t.Fatalf("exit = %d, want %d", code, ExitInvalidInvocation)
	}
	if !strings.Contains(stderr, "takes no arguments") {
		t.Errorf("stderr missing argument error:\n%s", stderr)
	}
}

func TestRegister_InstallsSpec(t *testing.T) {
	dataDir := isolateEnv(t)

	code, stdout, _ := runCLI(t, "register",
		"-name", "Mock-Kernel",
		"-display", "Mock",
		"-language", "mocklang",
		"-env", "FOO=bar",
		"--",
		"mock-kernel", "--connection", "{connection_file}")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, `Registered kernelspec "mock-kernel"`) {
		t.Errorf("stdout missing confirmation with normalized name:\n%s", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "kernels", "mock-kernel", "kernel.json"))
	if err != nil {
		t.Fatalf("kernel.json not written: %v", err)
	}
	for _, want := range []string{"{connection_file}", "mocklang", `"FOO": "bar"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("kernel.json missing %q:\n%s", want, data)
		}
	}

	code, stdout, _ = runCLI(t, "kernels")
	if code != ExitSuccess {
		t.Fatalf("kernels after register: exit = %d", code)
	}
	if !strings.Contains(stdout, "mock-kernel") {
		t.Errorf("new kernelspec not listed:\n%s", stdout)
	}
}

func TestRegister_Invalid(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing name", []string{"register", "python", "-f", "{connection_file}"}, "-name is required"},
		{"missing argv", []string{"register", "-name", "py"}, "argv is required"},
		{"no connection placeholder", []string{"register", "-name", "py", "--", "python"}, "connection_file"},
		{"invalid name", []string{"register", "-name", "bad name!", "--", "python", "{connection_file}"}, "invalid kernelspec name"},
		{"bad env", []string{"register", "-name", "py", "-env", "NOEQUALS", "--", "python", "{connection_file}"}, "KEY=VALUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != ExitInvalidInvocation {
				t.Fatalf("exit = %d, want %d\nstderr: %s", code, ExitInvalidInvocation, stderr)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr missing %q:\n%s", tt.want, stderr)
			}
		})
	}
}

func TestRemove_DeletesSpec(t *testing.T) {
	dataDir := isolateEnv(t)
	writeSpecDir(t, dataDir, "doomed", `{"argv": ["doomed", "{connection_file}"], "language": "x"}`)

	code, stdout, _ := runCLI(t, "remove", "doomed")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Removed ") {
		t.Errorf("stdout missing confirmation:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "kernels", "doomed")); !os.IsNotExist(err) {
		t.Error("kernelspec directory still present after remove")
	}
}

func TestRemove_Unknown(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := runCLI(t, "remove", "no-such-kernel-zzz")
	if code != ExitExecFailure {
		t.Fatalf("exit = %d, want %d", code, ExitExecFailure)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("stderr missing error:\n%s", stderr)
	}
}
