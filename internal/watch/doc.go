// Package watch notifies sessions when notebook files change on disk.
//
// Editors commonly save through a temp-file rename, which destroys a watch
// placed directly on the notebook. The watcher therefore watches each
// registered file's parent directory and filters events down to the
// registered paths. A single save produces a burst of create, write and
// rename events; a per-path debounce window coalesces the burst into one
// event carrying the merged operations.
package watch
