package channels

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-zeromq/zmq4"

	"github.com/bengtfrost/nbkernel/internal/wire"
)

// fakeSocket is an in-memory Socket. Tests push frames to feed Recv and
// inspect everything Send wrote.
type fakeSocket struct {
	mu       sync.Mutex
	sent     []zmq4.Msg
	incoming chan zmq4.Msg
	closed   chan struct{}
	once     sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		incoming: make(chan zmq4.Msg, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeSocket) Send(m zmq4.Msg) error {
	select {
	case <-f.closed:
		return errors.New("socket closed")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSocket) Recv() (zmq4.Msg, error) {
	select {
	case m := <-f.incoming:
		return m, nil
	case <-f.closed:
		return zmq4.Msg{}, errors.New("socket closed")
	}
}

func (f *fakeSocket) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) push(m zmq4.Msg) { f.incoming <- m }

func (f *fakeSocket) lastSent(t *testing.T) zmq4.Msg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

func newTestConn(t *testing.T) (*Conn, *fakeSocket, *fakeSocket, *fakeSocket, *fakeSocket) {
	t.Helper()
	signer, err := wire.NewSigner("hmac-sha256", "conn-test-key")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	shell, control, stdin, iopub := newFakeSocket(), newFakeSocket(), newFakeSocket(), newFakeSocket()
	return New(shell, control, stdin, iopub, signer, "session-1"), shell, control, stdin, iopub
}

func TestConn_SendShell(t *testing.T) {
	conn, shell, _, _, _ := newTestConn(t)

	msg, err := wire.NewMessage(conn.Session(), wire.MsgTypeExecuteRequest, wire.ExecuteRequest{Code: "1+1"})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if err := conn.SendShell(msg); err != nil {
		t.Fatalf("SendShell failed: %v", err)
	}

	// What went out must decode back under the same key.
	sent := shell.lastSent(t)
	decoded, err := wire.Decode(sent.Frames, conn.Signer())
	if err != nil {
		t.Fatalf("Decode of sent frames failed: %v", err)
	}
	if decoded.Type() != wire.MsgTypeExecuteRequest {
		t.Errorf("sent type = %q, want execute_request", decoded.Type())
	}
	if decoded.Header.Session != "session-1" {
		t.Errorf("sent session = %q, want session-1", decoded.Header.Session)
	}
}

func TestConn_RecvIOPub(t *testing.T) {
	conn, _, _, _, iopub := newTestConn(t)

	status := &wire.Message{
		Identities: [][]byte{[]byte("kernel.status")},
		Header:     wire.NewHeader("kernel-session", wire.MsgTypeStatus),
		Content:    []byte(`{"execution_state":"idle"}`),
	}
	frames, err := wire.Encode(status, conn.Signer())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	iopub.push(zmq4.NewMsgFrom(frames...))

	got, err := conn.RecvIOPub()
	if err != nil {
		t.Fatalf("RecvIOPub failed: %v", err)
	}
	if got.Type() != wire.MsgTypeStatus {
		t.Errorf("type = %q, want status", got.Type())
	}

	var s wire.Status
	if err := got.DecodeContent(&s); err != nil {
		t.Fatalf("DecodeContent failed: %v", err)
	}
	if s.ExecutionState != wire.StateIdle {
		t.Errorf("state = %q, want idle", s.ExecutionState)
	}
}

func TestConn_RejectsUnsignedTraffic(t *testing.T) {
	conn, shell, _, _, _ := newTestConn(t)

	// A message signed with a different key must not decode.
	wrongSigner, err := wire.NewSigner("hmac-sha256", "attacker-key")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	msg, err := wire.NewMessage("other", wire.MsgTypeExecuteReply, nil)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	frames, err := wire.Encode(msg, wrongSigner)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	shell.push(zmq4.NewMsgFrom(frames...))

	if _, err := conn.RecvShell(); !errors.Is(err, wire.ErrBadSignature) {
		t.Errorf("RecvShell = %v, want ErrBadSignature", err)
	}
}

func TestConn_Close(t *testing.T) {
	conn, shell, control, stdin, iopub := newTestConn(t)

	done := make(chan error, 1)
	go func() {
		_, err := conn.RecvShell()
		done <- err
	}()

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("blocked Recv after Close = %v, want ErrClosed", err)
	}

	msg, _ := wire.NewMessage("s", wire.MsgTypeKernelInfoRequest, nil)
	if err := conn.SendShell(msg); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	for name, sock := range map[string]*fakeSocket{
		"shell": shell, "control": control, "stdin": stdin, "iopub": iopub,
	} {
		select {
		case <-sock.closed:
		default:
			t.Errorf("%s socket not closed", name)
		}
	}
}
