package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bengtfrost/nbkernel/internal/kernelspec"
	"github.com/bengtfrost/nbkernel/internal/nbformat"
)

// Session is one open notebook, optionally bound to a running kernel.
// All methods are safe for concurrent use. The lock is never held while
// waiting on the kernel, so control operations and reloads stay
// responsive during a long evaluation.
type Session struct {
	mu sync.Mutex

	path   string
	doc    *nbformat.RawDoc
	runner Runner
	log    zerolog.Logger

	// staged holds evaluation results not yet written to disk,
	// keyed by cell index.
	staged map[int]stagedCell

	autoSync        bool
	stopOnError     bool
	includeMarkdown bool
}

// stagedCell is a pending output update for one code cell. source is
// the cell source the outputs were produced from; a reload drops the
// entry when the cell no longer reads the same.
type stagedCell struct {
	outputs []nbformat.Output
	count   *int
	source  string
}

// Option configures a Session.
type Option func(*Session)

// WithRunner attaches a kernel to the session. Without one the session
// is read-only with respect to evaluation; navigation, output import,
// and clearing still work.
func WithRunner(r Runner) Option {
	return func(s *Session) { s.runner = r }
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithAutoSync writes staged outputs back to the notebook after every
// evaluation and clear instead of waiting for an explicit Sync.
func WithAutoSync(on bool) Option {
	return func(s *Session) { s.autoSync = on }
}

// WithStopOnError stops a whole-notebook run at the first cell whose
// evaluation raises an exception.
func WithStopOnError(on bool) Option {
	return func(s *Session) { s.stopOnError = on }
}

// WithIncludeMarkdown makes cell navigation stop on markdown and raw
// cells as well as code cells.
func WithIncludeMarkdown(on bool) Option {
	return func(s *Session) { s.includeMarkdown = on }
}

// Open reads and parses the notebook at path.
func Open(path string, opts ...Option) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	doc, err := nbformat.ParseRaw(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}

	s := &Session{
		path:        abs,
		doc:         doc,
		log:         zerolog.Nop(),
		staged:      make(map[int]stagedCell),
		stopOnError: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Debug().
		Str("path", abs).
		Int("cells", doc.NumCells()).
		Str("kernel", doc.KernelName()).
		Msg("notebook opened")
	return s, nil
}

// Path returns the absolute notebook path.
func (s *Session) Path() string { return s.path }

// Runner returns the attached kernel, nil when the session has none.
func (s *Session) Runner() Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner
}

// Attach binds a kernel to the session, replacing any previous one.
func (s *Session) Attach(r Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = r
}

// NumCells returns the number of cells in the current view.
func (s *Session) NumCells() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.NumCells()
}

// Language returns the document language from notebook metadata.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Language()
}

// KernelName returns the kernelspec name recorded in notebook metadata.
func (s *Session) KernelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.KernelName()
}

// Cell returns the span of cell i.
func (s *Session) Cell(i int) (nbformat.CellSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Cell(i)
}

// CellForLine returns the cell spanning the given raw-text line.
func (s *Session) CellForLine(line int) (nbformat.CellSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.CellForLine(line)
}

// Source returns the joined source of cell i.
func (s *Session) Source(i int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Source(i)
}

// NextCell returns the first cell starting after the given line.
// Markdown and raw cells are skipped unless the session includes them.
func (s *Session) NextCell(line int) (nbformat.CellSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.NextCell(line, !s.includeMarkdown)
}

// PrevCell returns the last cell ending before the given line.
// Markdown and raw cells are skipped unless the session includes them.
func (s *Session) PrevCell(line int) (nbformat.CellSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.PrevCell(line, !s.includeMarkdown)
}

// Outputs returns the effective outputs of cell i: the staged result
// when one is pending, otherwise what the document holds.
func (s *Session) Outputs(i int) ([]nbformat.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.staged[i]; ok {
		return append([]nbformat.Output(nil), st.outputs...), nil
	}
	return s.doc.Outputs(i)
}

// ExecutionCount returns the effective execution count of cell i, nil
// when the cell has never run.
func (s *Session) ExecutionCount(i int) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.staged[i]; ok {
		if st.count == nil {
			return nil, nil
		}
		n := *st.count
		return &n, nil
	}
	return s.doc.ExecutionCount(i)
}

// ClearCell stages an empty output list for code cell i. Cells that are
// already clear are left untouched.
func (s *Session) ClearCell(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared, err := s.clearLocked(i)
	if err != nil {
		return err
	}
	if cleared && s.autoSync {
		return s.syncLocked()
	}
	return nil
}

// ClearAll stages an empty output list for every code cell that has
// outputs or an execution count. It returns the number of cells staged.
func (s *Session) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for _, span := range s.doc.Cells() {
		if !span.IsCode() {
			continue
		}
		did, err := s.clearLocked(span.Index)
		if err != nil {
			return cleared, err
		}
		if did {
			cleared++
		}
	}
	if cleared > 0 && s.autoSync {
		return cleared, s.syncLocked()
	}
	return cleared, nil
}

// clearLocked stages a clear for cell i unless it would change nothing.
// The caller holds the lock.
func (s *Session) clearLocked(i int) (bool, error) {
	span, err := s.doc.Cell(i)
	if err != nil {
		return false, err
	}
	if !span.IsCode() {
		return false, fmt.Errorf("cell %d: %w", i, nbformat.ErrNotCodeCell)
	}
	src, err := s.doc.Source(i)
	if err != nil {
		return false, err
	}
	if st, ok := s.staged[i]; ok {
		if len(st.outputs) == 0 && st.count == nil {
			return false, nil
		}
		s.staged[i] = stagedCell{source: src}
		return true, nil
	}
	outs, err := s.doc.Outputs(i)
	if err != nil {
		return false, err
	}
	count, err := s.doc.ExecutionCount(i)
	if err != nil {
		return false, err
	}
	if len(outs) == 0 && count == nil {
		return false, nil
	}
	s.staged[i] = stagedCell{source: src}
	return true, nil
}

// CellInfo is one row of the session's cell table.
type CellInfo struct {
	// Span locates the cell in the raw document.
	Span nbformat.CellSpan

	// ExecutionCount is the effective count, nil when never run.
	ExecutionCount *int

	// SourceLines is the number of source lines, zero for empty cells.
	SourceLines int

	// Preview is the first non-blank source line, trimmed.
	Preview string

	// Outputs is the effective number of outputs.
	Outputs int

	// Staged reports a pending result not yet written to disk.
	Staged bool
}

// CellTable summarizes every cell in document order.
func (s *Session) CellTable() []CellInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := s.doc.Cells()
	table := make([]CellInfo, 0, len(spans))
	for _, span := range spans {
		info := CellInfo{Span: span}
		if src, err := s.doc.Source(span.Index); err == nil && src != "" {
			info.SourceLines = strings.Count(src, "\n") + 1
			for _, line := range strings.Split(src, "\n") {
				if t := strings.TrimSpace(line); t != "" {
					info.Preview = t
					break
				}
			}
		}
		if span.IsCode() {
			if st, ok := s.staged[span.Index]; ok {
				info.Staged = true
				info.Outputs = len(st.outputs)
				if st.count != nil {
					n := *st.count
					info.ExecutionCount = &n
				}
			} else {
				if outs, err := s.doc.Outputs(span.Index); err == nil {
					info.Outputs = len(outs)
				}
				if count, err := s.doc.ExecutionCount(span.Index); err == nil {
					info.ExecutionCount = count
				}
			}
		}
		table = append(table, info)
	}
	return table
}

// SuggestKernels lists installed kernelspecs that could serve this
// notebook: the one named in its metadata plus any whose language
// matches the document's. With no language recorded, every installed
// spec qualifies.
func (s *Session) SuggestKernels(reg *kernelspec.Registry) ([]kernelspec.Installed, error) {
	s.mu.Lock()
	name := kernelspec.NormalizeName(s.doc.KernelName())
	lang := s.doc.Language()
	s.mu.Unlock()

	all, err := reg.List()
	if err != nil {
		return nil, err
	}
	if lang == "" && name == "" {
		return all, nil
	}
	var out []kernelspec.Installed
	for _, inst := range all {
		if inst.Name == name || strings.EqualFold(inst.Spec.Language, lang) {
			out = append(out, inst)
		}
	}
	return out, nil
}
