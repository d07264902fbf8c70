package kernel

import (
	"testing"
	"time"
)

func TestMetrics_RecordExecution(t *testing.T) {
	m := NewMetrics()

	m.RecordExecution(100*time.Millisecond, false)
	m.RecordExecution(300*time.Millisecond, true)
	m.RecordExecution(200*time.Millisecond, false)

	s := m.Snapshot()

	if s.Executions != 3 {
		t.Errorf("Executions = %d, want 3", s.Executions)
	}
	if s.ExecErrors != 1 {
		t.Errorf("ExecErrors = %d, want 1", s.ExecErrors)
	}
	if s.ExecMin != 100*time.Millisecond {
		t.Errorf("ExecMin = %v, want 100ms", s.ExecMin)
	}
	if s.ExecMax != 300*time.Millisecond {
		t.Errorf("ExecMax = %v, want 300ms", s.ExecMax)
	}
	if s.ExecAvg != 200*time.Millisecond {
		t.Errorf("ExecAvg = %v, want 200ms", s.ExecAvg)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	m := NewMetrics()
	s := m.Snapshot()

	if s.Executions != 0 {
		t.Errorf("Executions = %d, want 0", s.Executions)
	}
	if s.ExecMin != 0 || s.ExecMax != 0 || s.ExecAvg != 0 {
		t.Errorf("durations should be zero with no executions, got min=%v max=%v avg=%v",
			s.ExecMin, s.ExecMax, s.ExecAvg)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordInterrupt()
	m.RecordRestart()
	m.RecordRestart()
	m.RecordIOPub()
	m.RecordStream(512)
	m.RecordStream(512)

	s := m.Snapshot()

	if s.Interrupts != 1 {
		t.Errorf("Interrupts = %d, want 1", s.Interrupts)
	}
	if s.Restarts != 2 {
		t.Errorf("Restarts = %d, want 2", s.Restarts)
	}
	if s.IOPubMessages != 1 {
		t.Errorf("IOPubMessages = %d, want 1", s.IOPubMessages)
	}
	if s.StreamBytes != 1024 {
		t.Errorf("StreamBytes = %d, want 1024", s.StreamBytes)
	}
}

func TestMetrics_Uptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	if got := m.Snapshot().Uptime; got < 10*time.Millisecond {
		t.Errorf("Uptime = %v, want >= 10ms", got)
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusStopped, "stopped"},
		{StatusLaunching, "launching"},
		{StatusConnecting, "connecting"},
		{StatusIdle, "idle"},
		{StatusBusy, "busy"},
		{StatusRestarting, "restarting"},
		{StatusDead, "dead"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestStatus_Alive(t *testing.T) {
	alive := []Status{StatusIdle, StatusBusy, StatusConnecting, StatusRestarting}
	for _, s := range alive {
		if !s.Alive() {
			t.Errorf("Status %v should be alive", s)
		}
	}

	notAlive := []Status{StatusStopped, StatusLaunching, StatusDead}
	for _, s := range notAlive {
		if s.Alive() {
			t.Errorf("Status %v should not be alive", s)
		}
	}
}
