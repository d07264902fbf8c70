package nbformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CellSpan locates one cell inside the raw document text.
type CellSpan struct {
	// Index is the cell's position in the cells array.
	Index int

	// Type is the cell_type.
	Type string

	// Start and End are byte offsets of the cell value, half-open.
	Start int
	End   int

	// StartLine and EndLine are 1-based line numbers covering the cell
	// value, inclusive on both ends.
	StartLine int
	EndLine   int
}

// IsCode reports whether the span belongs to a code cell.
func (s CellSpan) IsCode() bool { return s.Type == CellTypeCode }

// Contains reports whether the 1-based line falls inside the cell value.
func (s CellSpan) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// RawDoc is a byte-preserving view of a notebook document. It knows where
// each cell lives in the original text and patches cells in place, so a
// document that is open as raw JSON in an editor keeps its exact layout
// everywhere we did not write.
//
// Mutating methods reparse the underlying text; spans obtained before a
// mutation are stale and must be re-fetched.
type RawDoc struct {
	data        []byte
	spans       []CellSpan
	lineOffsets []int
	indentUnit  string
	minor       int
}

// ParseRaw builds a raw view over notebook JSON.
func ParseRaw(data []byte) (*RawDoc, error) {
	if !json.Valid(data) {
		return nil, ErrNotJSON
	}

	major := gjson.GetBytes(data, "nbformat")
	minor := gjson.GetBytes(data, "nbformat_minor")
	if int(major.Int()) != FormatMajor {
		return nil, &VersionError{Major: int(major.Int()), Minor: int(minor.Int())}
	}

	cells := gjson.GetBytes(data, "cells")
	if !cells.Exists() || !cells.IsArray() {
		return nil, ErrNoCells
	}

	d := &RawDoc{
		data:        data,
		lineOffsets: lineOffsets(data),
		indentUnit:  detectIndentUnit(data),
		minor:       int(minor.Int()),
	}

	var ferr error
	searchFrom := 0
	index := 0
	cells.ForEach(func(_, cell gjson.Result) bool {
		start, ok := locateRaw(data, cell, searchFrom)
		if !ok {
			ferr = fmt.Errorf("cell %d: cannot locate value in document text", index)
			return false
		}
		end := start + len(cell.Raw)
		searchFrom = end

		cellType := cell.Get("cell_type").String()
		switch cellType {
		case CellTypeCode, CellTypeMarkdown, CellTypeRaw:
		default:
			ferr = fmt.Errorf("cell %d: unknown cell_type %q", index, cellType)
			return false
		}

		d.spans = append(d.spans, CellSpan{
			Index:     index,
			Type:      cellType,
			Start:     start,
			End:       end,
			StartLine: d.lineFor(start),
			EndLine:   d.lineFor(end - 1),
		})
		index++
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return d, nil
}

// locateRaw finds the byte offset of a gjson result within the original
// document. The parser-reported index is used when it checks out against
// the text; otherwise we scan forward from the previous cell, which keeps
// span mapping correct even for results whose index is unavailable.
func locateRaw(data []byte, r gjson.Result, searchFrom int) (int, bool) {
	if r.Index > 0 && r.Index+len(r.Raw) <= len(data) &&
		bytes.Equal(data[r.Index:r.Index+len(r.Raw)], []byte(r.Raw)) {
		return r.Index, true
	}
	i := bytes.Index(data[searchFrom:], []byte(r.Raw))
	if i < 0 {
		return 0, false
	}
	return searchFrom + i, true
}

// lineOffsets returns the byte offset of every line start.
func lineOffsets(data []byte) []int {
	offsets := []int{0}
	for i, b := range data {
		if b == '\n' && i+1 < len(data) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// detectIndentUnit inspects the first indented line. Reference tooling
// writes one-space indentation; hand-formatted files commonly use two or
// four spaces or tabs. Single-line documents yield the empty unit and
// patches stay compact.
func detectIndentUnit(data []byte) string {
	lines := bytes.Split(data, []byte("\n"))
	for _, line := range lines[1:] {
		trimmed := bytes.TrimLeft(line, " \t")
		if len(trimmed) == 0 || len(trimmed) == len(line) {
			continue
		}
		return string(line[:len(line)-len(trimmed)])
	}
	return ""
}

// lineFor converts a byte offset to a 1-based line number.
func (d *RawDoc) lineFor(offset int) int {
	i := sort.Search(len(d.lineOffsets), func(i int) bool {
		return d.lineOffsets[i] > offset
	})
	return i
}

// Bytes returns a copy of the document text.
func (d *RawDoc) Bytes() []byte {
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}

// NumCells returns the number of cells.
func (d *RawDoc) NumCells() int { return len(d.spans) }

// NumLines returns the number of lines in the document text.
func (d *RawDoc) NumLines() int { return len(d.lineOffsets) }

// FormatMinor returns the document's nbformat_minor value.
func (d *RawDoc) FormatMinor() int { return d.minor }

// Cells returns a copy of all cell spans in document order.
func (d *RawDoc) Cells() []CellSpan {
	out := make([]CellSpan, len(d.spans))
	copy(out, d.spans)
	return out
}

// Cell returns the span of the cell at index i.
func (d *RawDoc) Cell(i int) (CellSpan, error) {
	if i < 0 || i >= len(d.spans) {
		return CellSpan{}, fmt.Errorf("%w: %d of %d", ErrCellIndex, i, len(d.spans))
	}
	return d.spans[i], nil
}

// CellForLine returns the cell whose value spans the 1-based line. Lines on
// inter-cell syntax (array punctuation, the document prologue) belong to no
// cell.
func (d *RawDoc) CellForLine(line int) (CellSpan, error) {
	for _, span := range d.spans {
		if span.Contains(line) {
			return span, nil
		}
	}
	return CellSpan{}, fmt.Errorf("%w %d", ErrNoCellAtLine, line)
}

// NextCell returns the first cell starting after the given line, skipping
// non-code cells when codeOnly is set. When the line is inside a cell, the
// search starts after that cell.
func (d *RawDoc) NextCell(line int, codeOnly bool) (CellSpan, error) {
	from := line
	if cur, err := d.CellForLine(line); err == nil {
		from = cur.EndLine
	}
	for _, span := range d.spans {
		if span.StartLine <= from {
			continue
		}
		if codeOnly && !span.IsCode() {
			continue
		}
		return span, nil
	}
	return CellSpan{}, fmt.Errorf("%w after line %d", ErrNoAdjacentCell, line)
}

// PrevCell returns the last cell ending before the given line, skipping
// non-code cells when codeOnly is set. When the line is inside a cell, the
// search starts before that cell.
func (d *RawDoc) PrevCell(line int, codeOnly bool) (CellSpan, error) {
	from := line
	if cur, err := d.CellForLine(line); err == nil {
		from = cur.StartLine
	}
	for i := len(d.spans) - 1; i >= 0; i-- {
		span := d.spans[i]
		if span.EndLine >= from {
			continue
		}
		if codeOnly && !span.IsCode() {
			continue
		}
		return span, nil
	}
	return CellSpan{}, fmt.Errorf("%w before line %d", ErrNoAdjacentCell, line)
}

// Source returns the joined source text of cell i.
func (d *RawDoc) Source(i int) (string, error) {
	if _, err := d.Cell(i); err != nil {
		return "", err
	}
	res := gjson.GetBytes(d.data, fmt.Sprintf("cells.%d.source", i))
	if !res.Exists() {
		return "", nil
	}
	var src SourceText
	if err := json.Unmarshal([]byte(res.Raw), &src); err != nil {
		return "", fmt.Errorf("cell %d source: %w", i, err)
	}
	return src.Join(), nil
}

// Outputs decodes the stored outputs of code cell i.
func (d *RawDoc) Outputs(i int) ([]Output, error) {
	span, err := d.Cell(i)
	if err != nil {
		return nil, err
	}
	if !span.IsCode() {
		return nil, fmt.Errorf("cell %d: %w", i, ErrNotCodeCell)
	}
	res := gjson.GetBytes(d.data, fmt.Sprintf("cells.%d.outputs", i))
	if !res.Exists() {
		return nil, nil
	}
	var outs []Output
	if err := json.Unmarshal([]byte(res.Raw), &outs); err != nil {
		return nil, fmt.Errorf("cell %d outputs: %w", i, err)
	}
	return outs, nil
}

// ExecutionCount returns the stored execution count of code cell i, or nil
// when the cell has never been executed.
func (d *RawDoc) ExecutionCount(i int) (*int, error) {
	span, err := d.Cell(i)
	if err != nil {
		return nil, err
	}
	if !span.IsCode() {
		return nil, fmt.Errorf("cell %d: %w", i, ErrNotCodeCell)
	}
	res := gjson.GetBytes(d.data, fmt.Sprintf("cells.%d.execution_count", i))
	if !res.Exists() || res.Type == gjson.Null {
		return nil, nil
	}
	n := int(res.Int())
	return &n, nil
}

// SetOutputs replaces the outputs and execution count of code cell i in
// place. Only the patched values change; every other byte of the document
// is preserved. A nil count stores null.
func (d *RawDoc) SetOutputs(i int, outs []Output, count *int) error {
	span, err := d.Cell(i)
	if err != nil {
		return err
	}
	if !span.IsCode() {
		return fmt.Errorf("cell %d: %w", i, ErrNotCodeCell)
	}

	raw, err := d.renderOutputs(span, outs)
	if err != nil {
		return fmt.Errorf("cell %d: %w", i, err)
	}

	patched, err := sjson.SetRawBytes(d.data, fmt.Sprintf("cells.%d.outputs", i), raw)
	if err != nil {
		return fmt.Errorf("cell %d: patch outputs: %w", i, err)
	}

	countRaw := "null"
	if count != nil {
		countRaw = strconv.Itoa(*count)
	}
	patched, err = sjson.SetRawBytes(patched, fmt.Sprintf("cells.%d.execution_count", i), []byte(countRaw))
	if err != nil {
		return fmt.Errorf("cell %d: patch execution_count: %w", i, err)
	}

	return d.reparse(patched)
}

// ClearOutputs empties code cell i's outputs and nulls its count.
func (d *RawDoc) ClearOutputs(i int) error {
	return d.SetOutputs(i, nil, nil)
}

// ClearAllOutputs clears every code cell, returning how many were cleared.
func (d *RawDoc) ClearAllOutputs() (int, error) {
	cleared := 0
	// Spans shift on every patch, so walk by index.
	for i := 0; i < d.NumCells(); i++ {
		span, err := d.Cell(i)
		if err != nil {
			return cleared, err
		}
		if !span.IsCode() {
			continue
		}
		if err := d.ClearOutputs(i); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

// renderOutputs serializes an output list indented to sit at the cell's
// outputs key, so patched regions match the document's own layout.
func (d *RawDoc) renderOutputs(span CellSpan, outs []Output) ([]byte, error) {
	if outs == nil {
		outs = []Output{}
	}
	if d.indentUnit == "" {
		return marshalOutputs(outs)
	}

	lineStart := d.lineOffsets[span.StartLine-1]
	cellIndent := leadingWhitespace(d.data[lineStart:span.Start])
	prefix := cellIndent + d.indentUnit
	return json.MarshalIndent(outs, prefix, d.indentUnit)
}

// leadingWhitespace returns the run of spaces and tabs at the front of b.
func leadingWhitespace(b []byte) string {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return string(b[:i])
}

// Language returns the document's language from metadata, or the empty
// string.
func (d *RawDoc) Language() string {
	if res := gjson.GetBytes(d.data, "metadata.language_info.name"); res.Exists() {
		return res.String()
	}
	if res := gjson.GetBytes(d.data, "metadata.kernelspec.language"); res.Exists() {
		return res.String()
	}
	return ""
}

// KernelName returns the kernelspec name from metadata, or the empty string.
func (d *RawDoc) KernelName() string {
	return gjson.GetBytes(d.data, "metadata.kernelspec.name").String()
}

// reparse rebuilds the view over patched text.
func (d *RawDoc) reparse(data []byte) error {
	nd, err := ParseRaw(data)
	if err != nil {
		return fmt.Errorf("reparse after patch: %w", err)
	}
	*d = *nd
	return nil
}
