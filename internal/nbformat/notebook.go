package nbformat

import (
	"encoding/json"
	"fmt"
)

// FormatMajor is the notebook format major version this package supports.
const FormatMajor = 4

// defaultFormatMinor is written for notebooks we serialize ourselves.
const defaultFormatMinor = 5

// Cell types defined by the notebook format.
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Notebook is the typed form of a notebook document.
type Notebook struct {
	Cells       []Cell
	Metadata    map[string]any
	FormatMinor int
}

// Cell is one notebook cell. Outputs and ExecutionCount are meaningful only
// for code cells.
type Cell struct {
	Type           string
	ID             string
	Metadata       map[string]any
	Source         SourceText
	Outputs        []Output
	ExecutionCount *int
}

// IsCode reports whether the cell is a code cell.
func (c Cell) IsCode() bool { return c.Type == CellTypeCode }

// notebookJSON is the wire shape. Cells lead so our own serialization
// matches the field order of reference tooling.
type notebookJSON struct {
	Cells       []json.RawMessage `json:"cells"`
	Metadata    map[string]any    `json:"metadata"`
	FormatMajor int               `json:"nbformat"`
	FormatMinor int               `json:"nbformat_minor"`
}

// codeCellJSON serializes code cells; execution_count must be present even
// when null, and outputs must be an array even when empty.
type codeCellJSON struct {
	CellType       string         `json:"cell_type"`
	ID             string         `json:"id,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	Source         SourceText     `json:"source"`
	Outputs        []Output       `json:"outputs"`
	ExecutionCount *int           `json:"execution_count"`
}

// textCellJSON serializes markdown and raw cells, which carry no outputs.
type textCellJSON struct {
	CellType string         `json:"cell_type"`
	ID       string         `json:"id,omitempty"`
	Metadata map[string]any `json:"metadata"`
	Source   SourceText     `json:"source"`
}

// cellProbe is the permissive read shape for any cell type.
type cellProbe struct {
	CellType       string         `json:"cell_type"`
	ID             string         `json:"id"`
	Metadata       map[string]any `json:"metadata"`
	Source         SourceText     `json:"source"`
	Outputs        []Output       `json:"outputs"`
	ExecutionCount *int           `json:"execution_count"`
}

// Parse decodes a notebook document, rejecting unsupported major versions.
func Parse(data []byte) (*Notebook, error) {
	var doc notebookJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if doc.FormatMajor != FormatMajor {
		return nil, &VersionError{Major: doc.FormatMajor, Minor: doc.FormatMinor}
	}
	if doc.Cells == nil {
		return nil, ErrNoCells
	}

	nb := &Notebook{
		Cells:       make([]Cell, 0, len(doc.Cells)),
		Metadata:    doc.Metadata,
		FormatMinor: doc.FormatMinor,
	}
	for i, raw := range doc.Cells {
		var probe cellProbe
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		switch probe.CellType {
		case CellTypeCode, CellTypeMarkdown, CellTypeRaw:
		default:
			return nil, fmt.Errorf("cell %d: unknown cell_type %q", i, probe.CellType)
		}
		nb.Cells = append(nb.Cells, Cell{
			Type:           probe.CellType,
			ID:             probe.ID,
			Metadata:       probe.Metadata,
			Source:         probe.Source,
			Outputs:        probe.Outputs,
			ExecutionCount: probe.ExecutionCount,
		})
	}
	return nb, nil
}

// Marshal serializes the notebook with the layout reference tooling writes:
// one-space indentation and cells leading.
func (nb *Notebook) Marshal() ([]byte, error) {
	doc := notebookJSON{
		Cells:       make([]json.RawMessage, 0, len(nb.Cells)),
		Metadata:    nb.Metadata,
		FormatMajor: FormatMajor,
		FormatMinor: nb.FormatMinor,
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	if doc.FormatMinor == 0 {
		doc.FormatMinor = defaultFormatMinor
	}
	for i := range nb.Cells {
		raw, err := nb.Cells[i].marshal()
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		doc.Cells = append(doc.Cells, raw)
	}

	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// marshal encodes one cell in the shape appropriate for its type.
func (c Cell) marshal() ([]byte, error) {
	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	src := c.Source
	if src == nil {
		src = SourceText{}
	}

	if c.IsCode() {
		outs := c.Outputs
		if outs == nil {
			outs = []Output{}
		}
		return json.Marshal(codeCellJSON{
			CellType:       c.Type,
			ID:             c.ID,
			Metadata:       meta,
			Source:         src,
			Outputs:        outs,
			ExecutionCount: c.ExecutionCount,
		})
	}
	return json.Marshal(textCellJSON{
		CellType: c.Type,
		ID:       c.ID,
		Metadata: meta,
		Source:   src,
	})
}

// CodeCells returns the indexes of all code cells in document order.
func (nb *Notebook) CodeCells() []int {
	var idx []int
	for i := range nb.Cells {
		if nb.Cells[i].IsCode() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Language returns the notebook's language name from kernelspec or
// language_info metadata, or the empty string.
func (nb *Notebook) Language() string {
	if li, ok := nb.Metadata["language_info"].(map[string]any); ok {
		if name, ok := li["name"].(string); ok {
			return name
		}
	}
	if ks, ok := nb.Metadata["kernelspec"].(map[string]any); ok {
		if lang, ok := ks["language"].(string); ok {
			return lang
		}
	}
	return ""
}

// KernelName returns the kernelspec name recorded in notebook metadata, or
// the empty string.
func (nb *Notebook) KernelName() string {
	if ks, ok := nb.Metadata["kernelspec"].(map[string]any); ok {
		if name, ok := ks["name"].(string); ok {
			return name
		}
	}
	return ""
}
