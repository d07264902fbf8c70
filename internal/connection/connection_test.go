package connection

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	info, err := New("python3")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := info.Validate(); err != nil {
		t.Fatalf("fresh info is invalid: %v", err)
	}
	if info.Transport != TransportTCP || info.IP != "127.0.0.1" {
		t.Errorf("transport = %s://%s, want tcp://127.0.0.1", info.Transport, info.IP)
	}
	if info.Key == "" || info.SignatureScheme != SchemeHMACSHA256 {
		t.Errorf("key/scheme = %q/%q, want random key with hmac-sha256", info.Key, info.SignatureScheme)
	}
	if info.KernelName != "python3" {
		t.Errorf("kernel name = %q, want python3", info.KernelName)
	}

	ports := []int{info.ShellPort, info.IOPubPort, info.StdinPort, info.ControlPort, info.HBPort}
	seen := make(map[int]bool)
	for _, p := range ports {
		if p <= 0 {
			t.Errorf("port %d is not allocated", p)
		}
		if seen[p] {
			t.Errorf("port %d allocated twice", p)
		}
		seen[p] = true
	}
}

func TestFreePorts(t *testing.T) {
	ports, err := FreePorts(5)
	if err != nil {
		t.Fatalf("FreePorts failed: %v", err)
	}
	if len(ports) != 5 {
		t.Fatalf("got %d ports, want 5", len(ports))
	}
	seen := make(map[int]bool)
	for _, p := range ports {
		if seen[p] {
			t.Errorf("duplicate port %d", p)
		}
		seen[p] = true
	}
}

func TestWriteLoad(t *testing.T) {
	info, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "kernel-test.json")
	if err := info.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("connection file mode = %o, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *info {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, info)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		return path
	}

	if _, err := Load(write("garbled.json", "oops")); err == nil {
		t.Error("Load of non-JSON should fail")
	}

	badTransport := write("transport.json", `{"transport":"quic","ip":"127.0.0.1","shell_port":1,"iopub_port":2,"stdin_port":3,"control_port":4,"hb_port":5,"key":"k","signature_scheme":"hmac-sha256"}`)
	if _, err := Load(badTransport); !errors.Is(err, ErrBadTransport) {
		t.Errorf("err = %v, want ErrBadTransport", err)
	}

	badScheme := write("scheme.json", `{"transport":"tcp","ip":"127.0.0.1","shell_port":1,"iopub_port":2,"stdin_port":3,"control_port":4,"hb_port":5,"key":"k","signature_scheme":"hmac-md5"}`)
	if _, err := Load(badScheme); !errors.Is(err, ErrBadScheme) {
		t.Errorf("err = %v, want ErrBadScheme", err)
	}

	missingPort := write("port.json", `{"transport":"tcp","ip":"127.0.0.1","shell_port":1,"iopub_port":2,"stdin_port":3,"control_port":4,"key":"k","signature_scheme":"hmac-sha256"}`)
	if _, err := Load(missingPort); !errors.Is(err, ErrMissingPort) {
		t.Errorf("err = %v, want ErrMissingPort", err)
	}
}

func TestAddrs(t *testing.T) {
	info := &Info{
		Transport: TransportTCP, IP: "127.0.0.1",
		ShellPort: 5001, IOPubPort: 5002, StdinPort: 5003, ControlPort: 5004, HBPort: 5005,
	}

	if got := info.ShellAddr(); got != "tcp://127.0.0.1:5001" {
		t.Errorf("ShellAddr() = %q", got)
	}
	if got := info.HBAddr(); got != "tcp://127.0.0.1:5005" {
		t.Errorf("HBAddr() = %q", got)
	}

	ipc := &Info{Transport: TransportIPC, IP: "/tmp/kernel-abc", IOPubPort: 2}
	if got := ipc.IOPubAddr(); got != "ipc:///tmp/kernel-abc-2" {
		t.Errorf("IOPubAddr() = %q", got)
	}
}

func TestCreateFile(t *testing.T) {
	t.Setenv("JUPYTER_RUNTIME_DIR", t.TempDir())

	info, err := New("python3")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := CreateFile(info)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "kernel-") || !strings.HasSuffix(path, ".json") {
		t.Errorf("path = %s, want kernel-<id>.json", path)
	}

	if _, err := Load(path); err != nil {
		t.Errorf("Load of created file failed: %v", err)
	}
}

func TestSigned(t *testing.T) {
	if (&Info{}).Signed() {
		t.Error("empty key should mean unsigned")
	}
	if !(&Info{Key: "secret"}).Signed() {
		t.Error("non-empty key should mean signed")
	}
}
