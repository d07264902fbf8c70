package nbformat

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// rawFixture uses the one-space indentation reference tooling writes. Cell 0
// (markdown) spans lines 3-9, cell 1 (code, with output) lines 10-26, cell 2
// (code, never run) lines 27-36.
const rawFixture = `{
 "cells": [
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": [
    "# Title"
   ]
  },
  {
   "cell_type": "code",
   "execution_count": 2,
   "metadata": {},
   "outputs": [
    {
     "name": "stdout",
     "output_type": "stream",
     "text": [
      "hi\n"
     ]
    }
   ],
   "source": [
    "print(\"hi\")"
   ]
  },
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [],
   "source": [
    "x = 1\n",
    "x"
   ]
  }
 ],
 "metadata": {
  "kernelspec": {
   "display_name": "Python 3",
   "language": "python",
   "name": "python3"
  },
  "language_info": {
   "name": "python"
  }
 },
 "nbformat": 4,
 "nbformat_minor": 5
}
`

func mustParseRaw(t *testing.T, data string) *RawDoc {
	t.Helper()
	d, err := ParseRaw([]byte(data))
	if err != nil {
		t.Fatalf("ParseRaw failed: %v", err)
	}
	return d
}

func TestParseRaw(t *testing.T) {
	d := mustParseRaw(t, rawFixture)

	if d.NumCells() != 3 {
		t.Fatalf("NumCells() = %d, want 3", d.NumCells())
	}
	if d.NumLines() != 50 {
		t.Errorf("NumLines() = %d, want 50", d.NumLines())
	}
	if d.FormatMinor() != 5 {
		t.Errorf("FormatMinor() = %d, want 5", d.FormatMinor())
	}

	wantSpans := []struct {
		cellType  string
		startLine int
		endLine   int
	}{
		{CellTypeMarkdown, 3, 9},
		{CellTypeCode, 10, 26},
		{CellTypeCode, 27, 36},
	}
	for i, want := range wantSpans {
		span, err := d.Cell(i)
		if err != nil {
			t.Fatalf("Cell(%d) failed: %v", i, err)
		}
		if span.Index != i || span.Type != want.cellType {
			t.Errorf("Cell(%d) = index %d type %q, want index %d type %q",
				i, span.Index, span.Type, i, want.cellType)
		}
		if span.StartLine != want.startLine || span.EndLine != want.endLine {
			t.Errorf("Cell(%d) lines %d-%d, want %d-%d",
				i, span.StartLine, span.EndLine, want.startLine, want.endLine)
		}
	}

	// Spans must map back to the exact cell text.
	span, _ := d.Cell(0)
	raw := rawFixture[span.Start:span.End]
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		t.Errorf("span text is not the cell value: %q", raw)
	}
	if !strings.Contains(raw, `"# Title"`) {
		t.Errorf("span text missing cell content: %q", raw)
	}

	if d.Language() != "python" {
		t.Errorf("Language() = %q, want python", d.Language())
	}
	if d.KernelName() != "python3" {
		t.Errorf("KernelName() = %q, want python3", d.KernelName())
	}
}

func TestParseRaw_Errors(t *testing.T) {
	if _, err := ParseRaw([]byte("junk")); !errors.Is(err, ErrNotJSON) {
		t.Errorf("err = %v, want ErrNotJSON", err)
	}

	_, err := ParseRaw([]byte(`{"cells":[],"metadata":{},"nbformat":3,"nbformat_minor":0}`))
	var verr *VersionError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want VersionError", err)
	}

	if _, err := ParseRaw([]byte(`{"cells":{},"metadata":{},"nbformat":4,"nbformat_minor":5}`)); !errors.Is(err, ErrNoCells) {
		t.Errorf("err = %v, want ErrNoCells", err)
	}
}

func TestRawDoc_CellForLine(t *testing.T) {
	d := mustParseRaw(t, rawFixture)

	tests := []struct {
		line      int
		wantIndex int
		wantErr   bool
	}{
		{7, 0, false},
		{9, 0, false},
		{10, 1, false},
		{24, 1, false},
		{36, 2, false},
		{1, 0, true},
		{2, 0, true},
		{37, 0, true},
		{50, 0, true},
	}

	for _, tt := range tests {
		span, err := d.CellForLine(tt.line)
		if tt.wantErr {
			if !errors.Is(err, ErrNoCellAtLine) {
				t.Errorf("CellForLine(%d) err = %v, want ErrNoCellAtLine", tt.line, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CellForLine(%d) failed: %v", tt.line, err)
			continue
		}
		if span.Index != tt.wantIndex {
			t.Errorf("CellForLine(%d) = cell %d, want %d", tt.line, span.Index, tt.wantIndex)
		}
	}
}

func TestRawDoc_Navigation(t *testing.T) {
	d := mustParseRaw(t, rawFixture)

	next := func(line int, codeOnly bool) (int, error) {
		span, err := d.NextCell(line, codeOnly)
		return span.Index, err
	}
	prev := func(line int, codeOnly bool) (int, error) {
		span, err := d.PrevCell(line, codeOnly)
		return span.Index, err
	}

	if got, err := next(1, false); err != nil || got != 0 {
		t.Errorf("NextCell(1) = %d, %v, want cell 0", got, err)
	}
	if got, err := next(1, true); err != nil || got != 1 {
		t.Errorf("NextCell(1, codeOnly) = %d, %v, want cell 1", got, err)
	}
	// From inside cell 0 the next cell is cell 1.
	if got, err := next(5, false); err != nil || got != 1 {
		t.Errorf("NextCell(5) = %d, %v, want cell 1", got, err)
	}
	// From inside cell 1 the next code cell is cell 2.
	if got, err := next(20, true); err != nil || got != 2 {
		t.Errorf("NextCell(20, codeOnly) = %d, %v, want cell 2", got, err)
	}
	if _, err := next(30, true); !errors.Is(err, ErrNoAdjacentCell) {
		t.Errorf("NextCell(30, codeOnly) err = %v, want ErrNoAdjacentCell", err)
	}

	if got, err := prev(50, false); err != nil || got != 2 {
		t.Errorf("PrevCell(50) = %d, %v, want cell 2", got, err)
	}
	// From inside cell 2 the previous code cell is cell 1.
	if got, err := prev(28, true); err != nil || got != 1 {
		t.Errorf("PrevCell(28, codeOnly) = %d, %v, want cell 1", got, err)
	}
	// From inside cell 1 only the markdown cell precedes.
	if got, err := prev(12, false); err != nil || got != 0 {
		t.Errorf("PrevCell(12) = %d, %v, want cell 0", got, err)
	}
	if _, err := prev(12, true); !errors.Is(err, ErrNoAdjacentCell) {
		t.Errorf("PrevCell(12, codeOnly) err = %v, want ErrNoAdjacentCell", err)
	}
}

func TestRawDoc_SourceAndOutputs(t *testing.T) {
	d := mustParseRaw(t, rawFixture)

	if got, err := d.Source(0); err != nil || got != "# Title" {
		t.Errorf("Source(0) = %q, %v", got, err)
	}
	if got, err := d.Source(2); err != nil || got != "x = 1\nx" {
		t.Errorf("Source(2) = %q, %v", got, err)
	}

	outs, err := d.Outputs(1)
	if err != nil {
		t.Fatalf("Outputs(1) failed: %v", err)
	}
	if len(outs) != 1 || outs[0].Type != OutputTypeStream || outs[0].Text.Join() != "hi\n" {
		t.Errorf("Outputs(1) = %#v, want one stdout stream", outs)
	}

	if outs, err := d.Outputs(2); err != nil || len(outs) != 0 {
		t.Errorf("Outputs(2) = %#v, %v, want empty", outs, err)
	}
	if _, err := d.Outputs(0); !errors.Is(err, ErrNotCodeCell) {
		t.Errorf("Outputs(0) err = %v, want ErrNotCodeCell", err)
	}

	if count, err := d.ExecutionCount(1); err != nil || count == nil || *count != 2 {
		t.Errorf("ExecutionCount(1) = %v, %v, want 2", count, err)
	}
	if count, err := d.ExecutionCount(2); err != nil || count != nil {
		t.Errorf("ExecutionCount(2) = %v, %v, want nil", count, err)
	}
}

func TestRawDoc_SetOutputs(t *testing.T) {
	orig := []byte(rawFixture)
	d := mustParseRaw(t, rawFixture)
	span2, err := d.Cell(2)
	if err != nil {
		t.Fatalf("Cell(2) failed: %v", err)
	}

	count := 3
	if err := d.SetOutputs(2, []Output{Stream(StreamStdout, "done\n")}, &count); err != nil {
		t.Fatalf("SetOutputs failed: %v", err)
	}

	// Every byte outside the patched cell is preserved.
	patched := d.Bytes()
	if !bytes.Equal(patched[:span2.Start], orig[:span2.Start]) {
		t.Error("bytes before the patched cell changed")
	}
	tail := len(orig) - span2.End
	if !bytes.Equal(patched[len(patched)-tail:], orig[span2.End:]) {
		t.Error("bytes after the patched cell changed")
	}

	// The patched region follows the document's own indentation.
	text := string(patched)
	wantLayout := "\n    {\n     \"output_type\": \"stream\",\n     \"name\": \"stdout\",\n     \"text\": [\n      \"done\\n\"\n     ]\n    }\n   ],"
	if !strings.Contains(text, wantLayout) {
		t.Errorf("patched outputs not indented to match document:\n%s", text)
	}
	if !strings.Contains(text, `"execution_count": 3,`) {
		t.Error("execution_count not patched")
	}

	// Spans were recomputed over the patched text.
	if outs, err := d.Outputs(2); err != nil || len(outs) != 1 || outs[0].Text.Join() != "done\n" {
		t.Errorf("Outputs(2) after patch = %#v, %v", outs, err)
	}
	if count, err := d.ExecutionCount(2); err != nil || count == nil || *count != 3 {
		t.Errorf("ExecutionCount(2) after patch = %v, %v, want 3", count, err)
	}

	if err := d.SetOutputs(0, nil, nil); !errors.Is(err, ErrNotCodeCell) {
		t.Errorf("SetOutputs on markdown err = %v, want ErrNotCodeCell", err)
	}
	if err := d.SetOutputs(99, nil, nil); !errors.Is(err, ErrCellIndex) {
		t.Errorf("SetOutputs out of range err = %v, want ErrCellIndex", err)
	}
}

func TestRawDoc_ClearOutputs(t *testing.T) {
	d := mustParseRaw(t, rawFixture)

	if err := d.ClearOutputs(1); err != nil {
		t.Fatalf("ClearOutputs failed: %v", err)
	}

	if outs, err := d.Outputs(1); err != nil || len(outs) != 0 {
		t.Errorf("Outputs(1) after clear = %#v, %v, want empty", outs, err)
	}
	if count, err := d.ExecutionCount(1); err != nil || count != nil {
		t.Errorf("ExecutionCount(1) after clear = %v, %v, want nil", count, err)
	}

	// The document shrank; later cells must still resolve through fresh
	// spans.
	if got, err := d.Source(2); err != nil || got != "x = 1\nx" {
		t.Errorf("Source(2) after clear = %q, %v", got, err)
	}
	if !strings.Contains(string(d.Bytes()), `"outputs": [],`) {
		t.Error("cleared outputs should collapse to an empty array")
	}
}

func TestRawDoc_ClearAllOutputs(t *testing.T) {
	d := mustParseRaw(t, rawFixture)

	cleared, err := d.ClearAllOutputs()
	if err != nil {
		t.Fatalf("ClearAllOutputs failed: %v", err)
	}
	if cleared != 2 {
		t.Errorf("cleared = %d, want 2", cleared)
	}
	for _, i := range []int{1, 2} {
		if outs, _ := d.Outputs(i); len(outs) != 0 {
			t.Errorf("cell %d still has outputs after clear all", i)
		}
		if count, _ := d.ExecutionCount(i); count != nil {
			t.Errorf("cell %d still has execution count after clear all", i)
		}
	}
}

func TestRawDoc_CompactDocument(t *testing.T) {
	compact := `{"cells":[{"cell_type":"code","execution_count":null,"metadata":{},"outputs":[],"source":["1+1"]}],"metadata":{},"nbformat":4,"nbformat_minor":5}`
	d := mustParseRaw(t, compact)

	if d.NumCells() != 1 || d.NumLines() != 1 {
		t.Fatalf("NumCells() = %d, NumLines() = %d", d.NumCells(), d.NumLines())
	}
	span, _ := d.Cell(0)
	if span.StartLine != 1 || span.EndLine != 1 {
		t.Errorf("span lines %d-%d, want 1-1", span.StartLine, span.EndLine)
	}

	count := 1
	if err := d.SetOutputs(0, []Output{ExecuteResult(1, MIMEBundle{"text/plain": "2"}, nil)}, &count); err != nil {
		t.Fatalf("SetOutputs failed: %v", err)
	}

	// A single-line document is patched compactly, no indentation invented.
	text := string(d.Bytes())
	if strings.Contains(text, "\n") {
		t.Errorf("compact document gained newlines:\n%s", text)
	}
	if !strings.Contains(text, `"execution_count":1`) {
		t.Errorf("execution_count not patched: %s", text)
	}
}

func TestRawDoc_BytesIsACopy(t *testing.T) {
	d := mustParseRaw(t, rawFixture)
	b := d.Bytes()
	b[0] = 'X'
	if d.Bytes()[0] != '{' {
		t.Error("Bytes() must return a copy")
	}
}

func TestDetectIndentUnit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"one space", rawFixture, " "},
		{"two spaces", "{\n  \"cells\": []\n}", "  "},
		{"tab", "{\n\t\"cells\": []\n}", "\t"},
		{"single line", `{"cells":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectIndentUnit([]byte(tt.in)); got != tt.want {
				t.Errorf("detectIndentUnit = %q, want %q", got, tt.want)
			}
		})
	}
}
