package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bengtfrost/nbkernel/internal/render"
	"github.com/bengtfrost/nbkernel/internal/session"
)

// cmdRun executes every code cell of a notebook headlessly and writes
// the outputs back.
func (a *app) cmdRun(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kernelName := fs.String("kernel", "", "Kernelspec to launch (default: notebook metadata)")
	existing := fs.String("existing", "", "Attach to a running kernel's connection file")
	stopOnError := fs.Bool("stop-on-error", a.cfg.Session.StopOnError, "Stop at the first cell that raises")
	dryRun := fs.Bool("dry-run", false, "Evaluate without writing the notebook")
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("run: %v", err))
	}
	if fs.NArg() != 1 {
		return a.fail(invalidInvocationf("run takes exactly one notebook path"))
	}

	s, err := session.Open(fs.Arg(0),
		session.WithLogger(a.log.With().Str("component", "session").Logger()),
		session.WithStopOnError(*stopOnError),
		session.WithAutoSync(!*dryRun && a.cfg.Session.AutoSync),
	)
	if err != nil {
		return a.fail(err)
	}

	// Ctrl-C cancels the run between cells; the deferred disconnect
	// still shuts the kernel down cleanly.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := a.connect(ctx, s, *kernelName, *existing, nil)
	if err != nil {
		return a.fail(err)
	}
	defer a.disconnect(client)
	s.Attach(client)

	sum, runErr := s.RunAll(ctx, session.EvalOptions{})

	r := a.renderer()
	for i, ev := range sum.Evals {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		a.printEval(r, s, ev)
	}

	if runErr != nil {
		return a.fail(runErr)
	}

	if !*dryRun && s.Dirty() {
		if err := s.Sync(); err != nil {
			return a.fail(err)
		}
	}

	fmt.Fprintf(a.stdout, "\nRan %d cell(s), %d error(s), %d skipped in %s\n",
		sum.Ran, sum.Errored, sum.Skipped, sum.Duration.Round(time.Millisecond))
	if *dryRun {
		fmt.Fprintln(a.stdout, "Dry run: notebook not written.")
	}
	if sum.Errored > 0 {
		return ExitExecFailure
	}
	return ExitSuccess
}

// printEval writes one evaluated cell: its source under the prompt it
// ran with, then the outputs the kernel produced.
func (a *app) printEval(r *render.Renderer, s *session.Session, ev session.CellEval) {
	prompt := r.InPrompt(ev.Result.ExecutionCount)
	indent := strings.Repeat(" ", lipgloss.Width(prompt)+1)
	src, err := s.Source(ev.Index)
	if err != nil {
		src = ""
	}
	lines := strings.Split(src, "\n")
	fmt.Fprintf(a.stdout, "%s %s\n", prompt, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(a.stdout, "%s%s\n", indent, l)
	}
	if len(ev.Result.Outputs) > 0 {
		fmt.Fprintln(a.stdout, r.Outputs(ev.Result.Outputs))
	}
}
