// Package session binds one open notebook to at most one kernel and
// tracks the state between them: pending outputs from evaluations, the
// dirty flag, and reconciliation when the file changes on disk.
//
// Evaluation results are staged in memory, keyed by cell index, and only
// written back to the notebook on Sync (or automatically when auto-sync
// is on). A staged entry remembers the cell source it was produced from;
// if a reload finds that source changed, the entry is dropped so stale
// outputs never land in a rewritten cell. Writes go through a temp file
// and rename in the notebook's directory, so a concurrent reader never
// sees a half-written document.
//
// The session itself runs no goroutines. Kernel lifetime and file
// watching belong to the caller; the session only needs something that
// can execute code.
package session
