package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bengtfrost/nbkernel/internal/kernel"
	"github.com/bengtfrost/nbkernel/internal/nbformat"
)

// Runner is the execution surface a session needs from a kernel. It is
// satisfied by *kernel.Client.
type Runner interface {
	Execute(ctx context.Context, code string, opts kernel.ExecuteOptions) (*kernel.Result, error)
}

// EvalOptions tunes one evaluation.
type EvalOptions struct {
	// Silent runs the code without bumping the execution counter or
	// producing a result. Silent evaluations are never staged.
	Silent bool

	// AllowStdin lets the kernel prompt for input during the run.
	AllowStdin bool

	// OnOutput receives each output fragment as it arrives. It runs on
	// the kernel's reader goroutine and must not block.
	OnOutput func(nbformat.Output)

	// OnClear is invoked when the kernel clears the output area.
	OnClear func(wait bool)
}

// CellEval is the outcome of evaluating one cell.
type CellEval struct {
	// Index is the cell that ran.
	Index int

	// Result is the kernel's answer.
	Result *kernel.Result

	// Staged reports whether the outputs were captured for the next
	// sync. A result is not staged when the cell's source changed
	// while the kernel was running, or for silent evaluations.
	Staged bool
}

// EvalCode sends free-form code to the kernel; the text travels
// exactly as given. Nothing is staged: this backs line and selection
// evaluation, which do not belong to any one cell.
func (s *Session) EvalCode(ctx context.Context, code string, opts EvalOptions) (*kernel.Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptySource
	}
	s.mu.Lock()
	runner := s.runner
	s.mu.Unlock()
	if runner == nil {
		return nil, ErrNoKernel
	}
	return runner.Execute(ctx, code, kernel.ExecuteOptions{
		Silent:     opts.Silent,
		AllowStdin: opts.AllowStdin,
		OnOutput:   opts.OnOutput,
		OnClear:    opts.OnClear,
	})
}

// EvalCell runs code cell index and stages its outputs for the next
// sync. The session lock is released while the kernel runs; before
// staging, the cell source is compared against what was sent, and a
// mismatch discards the result rather than attach it to rewritten code.
func (s *Session) EvalCell(ctx context.Context, index int, opts EvalOptions) (*CellEval, error) {
	s.mu.Lock()
	runner := s.runner
	if runner == nil {
		s.mu.Unlock()
		return nil, ErrNoKernel
	}
	span, err := s.doc.Cell(index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !span.IsCode() {
		s.mu.Unlock()
		return nil, fmt.Errorf("cell %d: %w", index, nbformat.ErrNotCodeCell)
	}
	src, err := s.doc.Source(index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("cell %d: %w", index, ErrEmptySource)
	}

	res, err := runner.Execute(ctx, src, kernel.ExecuteOptions{
		Silent:     opts.Silent,
		AllowStdin: opts.AllowStdin,
		OnOutput:   opts.OnOutput,
		OnClear:    opts.OnClear,
	})
	if err != nil {
		return nil, err
	}

	ev := &CellEval{Index: index, Result: res}
	if opts.Silent {
		return ev, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.doc.Source(index)
	if err != nil || cur != src {
		s.log.Warn().Int("cell", index).Msg("cell changed during evaluation, result not staged")
		return ev, nil
	}
	var count *int
	if res.ExecutionCount > 0 {
		n := res.ExecutionCount
		count = &n
	}
	s.staged[index] = stagedCell{outputs: res.Outputs, count: count, source: src}
	ev.Staged = true
	s.log.Debug().
		Int("cell", index).
		Str("status", res.Status).
		Int("outputs", len(res.Outputs)).
		Msg("cell evaluated")

	if s.autoSync {
		if err := s.syncLocked(); err != nil {
			return ev, fmt.Errorf("auto-sync: %w", err)
		}
	}
	return ev, nil
}

// EvalCellAtLine runs the code cell spanning the given raw-text line.
func (s *Session) EvalCellAtLine(ctx context.Context, line int, opts EvalOptions) (*CellEval, error) {
	s.mu.Lock()
	span, err := s.doc.CellForLine(line)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.EvalCell(ctx, span.Index, opts)
}

// RunSummary reports a whole-notebook run.
type RunSummary struct {
	// Ran counts cells that reached the kernel.
	Ran int

	// Errored counts cells whose evaluation raised an exception.
	Errored int

	// Skipped counts code cells with blank source.
	Skipped int

	// Stopped reports the run ended before the last cell.
	Stopped bool

	// FirstError is the index of the first errored cell, -1 when none.
	FirstError int

	// Duration is wall time for the whole run.
	Duration time.Duration

	// Evals holds the per-cell outcomes in run order.
	Evals []CellEval
}

// RunAll evaluates every code cell in document order. With stop-on-error
// set, the run halts at the first cell whose evaluation raises; blank
// cells are skipped either way. A transport failure aborts the run and
// returns the partial summary alongside the error.
func (s *Session) RunAll(ctx context.Context, opts EvalOptions) (*RunSummary, error) {
	start := time.Now()
	sum := &RunSummary{FirstError: -1}

	s.mu.Lock()
	spans := s.doc.Cells()
	stopOnError := s.stopOnError
	s.mu.Unlock()

	for _, span := range spans {
		if !span.IsCode() {
			continue
		}
		if err := ctx.Err(); err != nil {
			sum.Stopped = true
			sum.Duration = time.Since(start)
			return sum, err
		}
		ev, err := s.EvalCell(ctx, span.Index, opts)
		if errors.Is(err, ErrEmptySource) {
			sum.Skipped++
			continue
		}
		if err != nil {
			sum.Stopped = true
			sum.Duration = time.Since(start)
			return sum, fmt.Errorf("cell %d: %w", span.Index, err)
		}
		sum.Ran++
		sum.Evals = append(sum.Evals, *ev)
		if ev.Result.Errored() {
			sum.Errored++
			if sum.FirstError < 0 {
				sum.FirstError = span.Index
			}
			if stopOnError {
				sum.Stopped = true
				break
			}
		}
	}

	sum.Duration = time.Since(start)
	s.log.Info().
		Int("ran", sum.Ran).
		Int("errored", sum.Errored).
		Int("skipped", sum.Skipped).
		Bool("stopped", sum.Stopped).
		Dur("duration", sum.Duration).
		Msg("notebook run finished")
	return sum, nil
}
