// Package nbformat models Jupyter notebook documents (nbformat 4.x).
//
// It provides two views of the same document:
//
//   - Notebook/Cell/Output: a typed model for callers that own the whole
//     document, such as headless runs or output listing.
//   - RawDoc: a byte-preserving view for documents that are concurrently
//     open as raw JSON text in an editor. RawDoc maps cells to byte spans
//     and line ranges in the original text and patches a single cell's
//     outputs in place, leaving every other byte of the file untouched.
//
// The split exists because output synchronization must not reformat a file
// the operator is editing by hand: a full unmarshal/marshal round trip
// reorders keys and reflows cells that were never executed. RawDoc pays the
// cost of offset bookkeeping so that a sync is a surgical patch.
//
// Source arrays are accepted in both JSON encodings (a single string or a
// list of line strings) and are always re-serialized as line lists, which
// is what the reference tooling writes.
package nbformat
