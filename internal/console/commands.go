package console

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bengtfrost/nbkernel/internal/kernel"
	"github.com/bengtfrost/nbkernel/internal/nbformat"
	"github.com/bengtfrost/nbkernel/internal/session"
)

const helpText = `Console commands:
  :cell [N]      evaluate notebook cell N (or the cell at the cursor)
  :sel           read lines until a lone "." and evaluate them together
  :next, :n      move the cursor to the next cell
  :prev, :p      move the cursor to the previous cell
  :import [N]    show stored outputs for cell N (or the cell at the cursor)
  :cells         list cells with counts and output summary
  :clear [N|all] clear outputs of cell N, the cursor cell, or all cells
  :sync          write staged outputs back to the notebook file
  :reload        reparse the notebook from disk
  :interrupt     send an interrupt to the kernel
  :restart       restart the kernel (owned kernels only)
  :info          show session and kernel state
  :help, :h      show this help
  :quit, :q      leave the console

Anything else is sent to the kernel as code.`

func (c *Console) dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case ":help", ":h":
		c.printf("%s\n", helpText)
	case ":sel":
		c.cmdSel(ctx)
	case ":cell":
		c.cmdCell(ctx, args)
	case ":next", ":n":
		c.cmdMove(args, c.sess.NextCell)
	case ":prev", ":p":
		c.cmdMove(args, c.sess.PrevCell)
	case ":import":
		c.cmdImport(args)
	case ":cells":
		c.cmdCells()
	case ":clear":
		c.cmdClear(args)
	case ":sync":
		c.cmdSync()
	case ":reload":
		c.cmdReload()
	case ":interrupt":
		c.cmdInterrupt(ctx)
	case ":restart":
		c.cmdRestart(ctx)
	case ":info":
		c.cmdInfo()
	case ":quit", ":q":
		c.quit = true
	default:
		c.printf("unknown command %s (:help for commands)\n", cmd)
	}
}

// cmdSel collects a selection line by line and sends it as one block.
func (c *Console) cmdSel(ctx context.Context) {
	var lines []string
	for {
		line, ok := c.readLine("sel>")
		if !ok || strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	code := strings.Join(lines, "\n")
	if strings.TrimSpace(code) == "" {
		c.printf("nothing selected\n")
		return
	}
	c.execute(ctx, code)
}

// cmdCell evaluates a notebook cell and stages its outputs.
func (c *Console) cmdCell(ctx context.Context, args []string) {
	index := -1
	if len(args) > 0 {
		i, err := c.parseIndex(args[0])
		if err != nil {
			c.printf("%v\n", err)
			return
		}
		index = i
	}

	var (
		ev  *session.CellEval
		err error
	)
	c.executing.Store(true)
	if index >= 0 {
		ev, err = c.sess.EvalCell(ctx, index, session.EvalOptions{AllowStdin: true})
	} else {
		ev, err = c.sess.EvalCellAtLine(ctx, c.navLine, session.EvalOptions{AllowStdin: true})
	}
	c.executing.Store(false)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.showResult(ev.Result)
	switch {
	case !ev.Staged:
		c.printf("[cell %d not staged]\n", ev.Index)
	case c.sess.Dirty():
		c.printf("[cell %d staged; :sync to write]\n", ev.Index)
	default:
		c.printf("[cell %d synced]\n", ev.Index)
	}
}

// cmdMove shifts the cursor to an adjacent cell and previews it.
func (c *Console) cmdMove(args []string, next func(int) (nbformat.CellSpan, error)) {
	if len(args) > 0 {
		c.printf("usage: :next | :prev\n")
		return
	}
	span, err := next(c.navLine)
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	c.navLine = span.StartLine
	info := c.cellInfo(span.Index)
	c.printf("cell %d (lines %d-%d): %s\n", span.Index, span.StartLine, span.EndLine, info.Preview)
}

// cmdImport prints stored outputs for a cell, staged values first.
func (c *Console) cmdImport(args []string) {
	index := -1
	if len(args) > 0 {
		i, err := c.parseIndex(args[0])
		if err != nil {
			c.printf("%v\n", err)
			return
		}
		index = i
	} else {
		span, err := c.sess.CellForLine(c.navLine)
		if err != nil {
			c.printf("%v\n", err)
			return
		}
		index = span.Index
	}
	count, err := c.sess.ExecutionCount(index)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	outs, err := c.sess.Outputs(index)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	src, err := c.sess.Source(index)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}

	prompt := c.render.CellPrompt(count)
	indent := strings.Repeat(" ", lipgloss.Width(prompt)+1)
	for i, line := range strings.Split(src, "\n") {
		if i == 0 {
			c.printf("%s %s\n", prompt, line)
		} else {
			c.printf("%s%s\n", indent, line)
		}
	}
	if len(outs) == 0 {
		c.printf("(no stored outputs)\n")
		return
	}
	if out := c.render.Outputs(outs); out != "" {
		c.printf("%s\n", out)
	}
}

// cmdCells prints the cell table.
func (c *Console) cmdCells() {
	for _, info := range c.sess.CellTable() {
		count := " "
		if info.ExecutionCount != nil {
			count = strconv.Itoa(*info.ExecutionCount)
		}
		staged := ""
		if info.Staged {
			staged = " *"
		}
		c.printf("%3d  %-8s  [%s]  %d output(s)%s  %s\n",
			info.Span.Index, info.Span.Type, count, info.Outputs, staged, info.Preview)
	}
}

// cmdClear stages cleared outputs for one cell or all of them.
func (c *Console) cmdClear(args []string) {
	if len(args) > 0 && args[0] == "all" {
		n, err := c.sess.ClearAll()
		if err != nil {
			c.printf("error: %v\n", err)
			return
		}
		c.printf("cleared %d cell(s); :sync to write\n", n)
		return
	}
	index := -1
	if len(args) > 0 {
		i, err := c.parseIndex(args[0])
		if err != nil {
			c.printf("%v\n", err)
			return
		}
		index = i
	} else {
		span, err := c.sess.CellForLine(c.navLine)
		if err != nil {
			c.printf("%v\n", err)
			return
		}
		index = span.Index
	}
	if err := c.sess.ClearCell(index); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("cleared cell %d; :sync to write\n", index)
}

// cmdSync writes staged outputs back to the notebook file.
func (c *Console) cmdSync() {
	n := len(c.sess.StagedCells())
	if n == 0 {
		c.printf("nothing to sync\n")
		return
	}
	if err := c.sess.Sync(); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("synced %d cell(s) to %s\n", n, c.sess.Path())
}

// cmdReload reparses the notebook from disk.
func (c *Console) cmdReload() {
	res, err := c.sess.Reload()
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	if !res.Changed {
		c.printf("notebook unchanged (%d cells)\n", res.Cells)
		return
	}
	c.printf("reloaded: %d cells", res.Cells)
	if len(res.Dropped) > 0 {
		c.printf(", dropped staged outputs for %v", res.Dropped)
	}
	c.printf("\n")
}

func (c *Console) cmdInterrupt(ctx context.Context) {
	ictx, cancel := context.WithTimeout(ctx, interruptTimeout)
	defer cancel()
	if err := c.kernel.Interrupt(ictx); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("interrupt sent\n")
}

func (c *Console) cmdRestart(ctx context.Context) {
	if err := c.kernel.Restart(ctx); err != nil {
		if errors.Is(err, kernel.ErrNotOwned) {
			c.printf("kernel was started elsewhere; restart it from where it runs\n")
			return
		}
		c.printf("error: %v\n", err)
		return
	}
	c.nextCount = 1
	c.printf("kernel restarted\n")
}

func (c *Console) cmdInfo() {
	c.printf("Notebook: %s (%d cells, %d staged)\n",
		c.sess.Path(), c.sess.NumCells(), len(c.sess.StagedCells()))
	owned := "attached"
	if c.kernel.Owned() {
		owned = "owned"
	}
	c.printf("Kernel:   %s, %s\n", c.kernel.Status(), owned)
	if info := c.kernel.KernelInfo(); info != nil {
		c.printf("Language: %s %s (%s %s)\n",
			info.LanguageInfo.Name, info.LanguageInfo.Version,
			info.Implementation, info.ImplementationVersion)
	}
}

// parseIndex parses a 0-based cell index argument.
func (c *Console) parseIndex(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.New("cell index must be a number")
	}
	return i, nil
}

// cellInfo fetches the table row for one cell. Falls back to a zero
// value when the index is gone, which only happens if the notebook
// shrank between the span lookup and the table read.
func (c *Console) cellInfo(index int) session.CellInfo {
	for _, info := range c.sess.CellTable() {
		if info.Span.Index == index {
			return info
		}
	}
	return session.CellInfo{}
}
