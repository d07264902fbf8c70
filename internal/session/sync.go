package session

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bengtfrost/nbkernel/internal/nbformat"
)

// Dirty reports whether staged results await a sync.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged) > 0
}

// StagedCells returns the indices of cells with pending results, in
// document order.
func (s *Session) StagedCells() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.staged))
	for i := range s.staged {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Sync writes staged outputs back to the notebook. Only the patched
// cells' outputs and execution counts change; every other byte of the
// file is preserved. With nothing staged, Sync does not touch the file.
func (s *Session) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked()
}

// syncLocked applies the staged set to a scratch copy of the document,
// writes it out atomically, and only then swaps the session's view. A
// failed patch or write leaves both the session and the file as they
// were. The caller holds the lock.
func (s *Session) syncLocked() error {
	if len(s.staged) == 0 {
		return nil
	}

	patched, err := nbformat.ParseRaw(s.doc.Bytes())
	if err != nil {
		return fmt.Errorf("reparse document: %w", err)
	}
	indices := make([]int, 0, len(s.staged))
	for i := range s.staged {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		st := s.staged[i]
		if err := patched.SetOutputs(i, st.outputs, st.count); err != nil {
			return fmt.Errorf("patch cell %d: %w", i, err)
		}
	}

	if err := writeFileAtomic(s.path, patched.Bytes()); err != nil {
		return fmt.Errorf("write notebook: %w", err)
	}

	s.doc = patched
	s.staged = make(map[int]stagedCell)
	s.log.Info().
		Str("path", s.path).
		Int("cells", len(indices)).
		Msg("notebook synced")
	return nil
}

// ReloadResult reports what a reload found.
type ReloadResult struct {
	// Changed reports the on-disk bytes differed from the session's
	// view. A reload right after our own sync reads back what we wrote
	// and changes nothing.
	Changed bool

	// Cells is the cell count after the reload.
	Cells int

	// Dropped lists staged cells discarded because their source no
	// longer matches what was evaluated. The file wins.
	Dropped []int

	// Kept counts staged cells that survived the reload.
	Kept int
}

// Reload re-reads the notebook from disk, picking up outside edits.
// Staged results are kept only for cells whose source is unchanged.
func (s *Session) Reload() (*ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	if bytes.Equal(data, s.doc.Bytes()) {
		return &ReloadResult{Cells: s.doc.NumCells(), Kept: len(s.staged)}, nil
	}

	doc, err := nbformat.ParseRaw(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	res := &ReloadResult{Changed: true, Cells: doc.NumCells()}
	kept := make(map[int]stagedCell, len(s.staged))
	for i, st := range s.staged {
		src, err := doc.Source(i)
		if err == nil && src == st.source {
			kept[i] = st
			res.Kept++
			continue
		}
		res.Dropped = append(res.Dropped, i)
	}
	sort.Ints(res.Dropped)

	s.doc = doc
	s.staged = kept
	s.log.Info().
		Str("path", s.path).
		Int("cells", res.Cells).
		Int("dropped", len(res.Dropped)).
		Msg("notebook reloaded")
	return res, nil
}

// writeFileAtomic writes data to a temp file in path's directory and
// renames it into place, preserving the original file mode.
func writeFileAtomic(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	ok = true
	return nil
}
