package kernel

import (
	"sync/atomic"
	"time"
)

// Metrics tracks per-kernel execution statistics with lock-free counters.
type Metrics struct {
	executions    atomic.Uint64
	execErrors    atomic.Uint64
	execTotalNs   atomic.Int64
	execMinNs     atomic.Int64
	execMaxNs     atomic.Int64
	interrupts    atomic.Uint64
	restarts      atomic.Uint64
	iopubMessages atomic.Uint64
	streamBytes   atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	// Initialize min to max int64 so the first execution is smaller.
	m.execMinNs.Store(1<<63 - 1)
	return m
}

// RecordExecution records one finished execution.
func (m *Metrics) RecordExecution(d time.Duration, failed bool) {
	ns := d.Nanoseconds()

	m.executions.Add(1)
	m.execTotalNs.Add(ns)
	if failed {
		m.execErrors.Add(1)
	}

	for {
		min := m.execMinNs.Load()
		if ns >= min || m.execMinNs.CompareAndSwap(min, ns) {
			break
		}
	}
	for {
		max := m.execMaxNs.Load()
		if ns <= max || m.execMaxNs.CompareAndSwap(max, ns) {
			break
		}
	}
}

// RecordInterrupt counts one interrupt request.
func (m *Metrics) RecordInterrupt() { m.interrupts.Add(1) }

// RecordRestart counts one kernel restart.
func (m *Metrics) RecordRestart() { m.restarts.Add(1) }

// RecordIOPub counts one iopub broadcast.
func (m *Metrics) RecordIOPub() { m.iopubMessages.Add(1) }

// RecordStream counts stream output volume.
func (m *Metrics) RecordStream(bytes int) { m.streamBytes.Add(uint64(bytes)) }

// Snapshot is a point-in-time view of the metrics.
type Snapshot struct {
	Executions    uint64
	ExecErrors    uint64
	ExecAvg       time.Duration
	ExecMin       time.Duration
	ExecMax       time.Duration
	Interrupts    uint64
	Restarts      uint64
	IOPubMessages uint64
	StreamBytes   uint64
	Uptime        time.Duration
}

// Snapshot returns current values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Executions:    m.executions.Load(),
		ExecErrors:    m.execErrors.Load(),
		Interrupts:    m.interrupts.Load(),
		Restarts:      m.restarts.Load(),
		IOPubMessages: m.iopubMessages.Load(),
		StreamBytes:   m.streamBytes.Load(),
		Uptime:        time.Since(m.startTime),
	}
	if s.Executions > 0 {
		s.ExecAvg = time.Duration(m.execTotalNs.Load() / int64(s.Executions))
		s.ExecMin = time.Duration(m.execMinNs.Load())
		s.ExecMax = time.Duration(m.execMaxNs.Load())
	}
	return s
}
