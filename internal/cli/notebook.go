package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bengtfrost/nbkernel/internal/render"
	"github.com/bengtfrost/nbkernel/internal/session"
)

// cmdImport prints the outputs stored in a notebook, without touching
// any kernel.
func (a *app) cmdImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cell := fs.Int("cell", -1, "Cell index to show (default: every cell with outputs)")
	line := fs.Int("line", 0, "Raw-text line whose cell to show")
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("import: %v", err))
	}
	if fs.NArg() != 1 {
		return a.fail(invalidInvocationf("import takes exactly one notebook path"))
	}

	s, err := session.Open(fs.Arg(0), session.WithLogger(a.log))
	if err != nil {
		return a.fail(err)
	}
	r := a.renderer()

	if *line > 0 {
		span, err := s.CellForLine(*line)
		if err != nil {
			return a.fail(err)
		}
		*cell = span.Index
	}
	if *cell >= 0 {
		if err := a.printStoredCell(r, s, *cell); err != nil {
			return a.fail(err)
		}
		return ExitSuccess
	}

	printed := 0
	for _, info := range s.CellTable() {
		if !info.Span.IsCode() {
			continue
		}
		if info.Outputs == 0 && info.ExecutionCount == nil {
			continue
		}
		if printed > 0 {
			fmt.Fprintln(a.stdout)
		}
		if err := a.printStoredCell(r, s, info.Span.Index); err != nil {
			return a.fail(err)
		}
		printed++
	}
	if printed == 0 {
		fmt.Fprintln(a.stdout, "No stored outputs.")
	}
	return ExitSuccess
}

// printStoredCell writes one cell's source under its prompt, then its
// stored outputs.
func (a *app) printStoredCell(r *render.Renderer, s *session.Session, i int) error {
	src, err := s.Source(i)
	if err != nil {
		return err
	}
	outs, err := s.Outputs(i)
	if err != nil {
		return err
	}
	count, err := s.ExecutionCount(i)
	if err != nil {
		return err
	}

	prompt := r.CellPrompt(count)
	indent := strings.Repeat(" ", lipgloss.Width(prompt)+1)
	lines := strings.Split(src, "\n")
	fmt.Fprintf(a.stdout, "%s %s\n", prompt, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(a.stdout, "%s%s\n", indent, l)
	}
	if len(outs) > 0 {
		fmt.Fprintln(a.stdout, r.Outputs(outs))
	}
	return nil
}

// cmdCells prints the cell table: index, type, line span, execution
// count, output count, and a source preview.
func (a *app) cmdCells(args []string) int {
	fs := flag.NewFlagSet("cells", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("cells: %v", err))
	}
	if fs.NArg() != 1 {
		return a.fail(invalidInvocationf("cells takes exactly one notebook path"))
	}

	s, err := session.Open(fs.Arg(0), session.WithLogger(a.log))
	if err != nil {
		return a.fail(err)
	}

	fmt.Fprintf(a.stdout, "%4s  %-8s  %11s  %5s  %4s  %s\n",
		"CELL", "TYPE", "LINES", "COUNT", "OUTS", "PREVIEW")
	for _, info := range s.CellTable() {
		count := "-"
		if info.ExecutionCount != nil {
			count = fmt.Sprintf("%d", *info.ExecutionCount)
		}
		span := fmt.Sprintf("%d-%d", info.Span.StartLine, info.Span.EndLine)
		fmt.Fprintf(a.stdout, "%4d  %-8s  %11s  %5s  %4d  %s\n",
			info.Span.Index, info.Span.Type, span, count, info.Outputs, truncate(info.Preview, 60))
	}
	return ExitSuccess
}

// cmdClear removes stored outputs and writes the notebook back.
func (a *app) cmdClear(args []string) int {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cell := fs.Int("cell", -1, "Cell index to clear (default all)")
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("clear: %v", err))
	}
	if fs.NArg() != 1 {
		return a.fail(invalidInvocationf("clear takes exactly one notebook path"))
	}

	s, err := session.Open(fs.Arg(0), session.WithLogger(a.log))
	if err != nil {
		return a.fail(err)
	}

	cleared := 0
	if *cell >= 0 {
		if err := s.ClearCell(*cell); err != nil {
			return a.fail(err)
		}
		cleared = len(s.StagedCells())
	} else {
		if cleared, err = s.ClearAll(); err != nil {
			return a.fail(err)
		}
	}
	if cleared == 0 {
		fmt.Fprintln(a.stdout, "Nothing to clear.")
		return ExitSuccess
	}
	if err := s.Sync(); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout, "Cleared %d cell(s) in %s\n", cleared, s.Path())
	return ExitSuccess
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
