package nbformat

import (
	"errors"
	"fmt"
)

// Standard errors returned by the nbformat package.
var (
	// ErrNotJSON indicates the document is not well-formed JSON.
	ErrNotJSON = errors.New("notebook is not valid JSON")

	// ErrNoCells indicates the document has no cells array.
	ErrNoCells = errors.New("notebook has no cells array")

	// ErrCellIndex indicates a cell index out of range.
	ErrCellIndex = errors.New("cell index out of range")

	// ErrNotCodeCell indicates an output operation on a non-code cell.
	ErrNotCodeCell = errors.New("cell is not a code cell")

	// ErrNoCellAtLine indicates no cell spans the given raw-text line.
	ErrNoCellAtLine = errors.New("no cell at line")

	// ErrNoAdjacentCell indicates navigation ran off the end of the document.
	ErrNoAdjacentCell = errors.New("no adjacent cell")
)

// VersionError indicates an unsupported notebook format version.
type VersionError struct {
	Major int
	Minor int
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported notebook format %d.%d (want major %d)", e.Major, e.Minor, FormatMajor)
}
