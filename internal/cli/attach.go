package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bengtfrost/nbkernel/internal/console"
	"github.com/bengtfrost/nbkernel/internal/kernel"
	"github.com/bengtfrost/nbkernel/internal/kernelspec"
	"github.com/bengtfrost/nbkernel/internal/session"
	"github.com/bengtfrost/nbkernel/internal/watch"
)

// cmdAttach opens an interactive console on a notebook. The kernel is
// resolved from the -kernel flag, the notebook metadata, or an
// interactive pick over the installed kernelspecs.
func (a *app) cmdAttach(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kernelName := fs.String("kernel", "", "Kernelspec to launch (default: notebook metadata)")
	existing := fs.String("existing", "", "Attach to a running kernel's connection file")
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("attach: %v", err))
	}
	if fs.NArg() != 1 {
		return a.fail(invalidInvocationf("attach takes exactly one notebook path"))
	}

	s, err := session.Open(fs.Arg(0),
		session.WithLogger(a.log.With().Str("component", "session").Logger()),
		session.WithAutoSync(a.cfg.Session.AutoSync),
		session.WithIncludeMarkdown(a.cfg.Navigate.IncludeMarkdown),
	)
	if err != nil {
		return a.fail(err)
	}

	consOpts := []console.Option{
		console.WithRenderer(a.renderer()),
		console.WithLogger(a.log.With().Str("component", "console").Logger()),
		console.WithOutput(a.stdout),
	}

	var watcher *watch.Watcher
	if a.cfg.Session.Watch {
		watcher, err = watch.New(watch.WithDebounce(a.cfg.Session.WatchDebounce.Std()))
		if err != nil {
			return a.fail(fmt.Errorf("start watcher: %w", err))
		}
		defer watcher.Close()
		if err := watcher.Add(s.Path()); err != nil {
			return a.fail(fmt.Errorf("watch %s: %w", s.Path(), err))
		}
		consOpts = append(consOpts, console.WithWatcher(watcher))
	}

	cons := console.New(s, consOpts...)

	client, err := a.connectInteractive(ctx, s, cons, *kernelName, *existing)
	if err != nil {
		return a.fail(err)
	}
	defer a.disconnect(client)
	s.Attach(client)
	cons.SetKernel(client)

	if err := cons.Run(ctx); err != nil {
		return a.fail(err)
	}
	return ExitSuccess
}

// connectInteractive resolves and connects a kernel for the console,
// falling back to an interactive kernelspec pick when nothing in the
// notebook metadata or config matches.
func (a *app) connectInteractive(ctx context.Context, s *session.Session, cons *console.Console, kernelName, existing string) (*kernel.Client, error) {
	if existing != "" || kernelName != "" {
		return a.connect(ctx, s, kernelName, existing, cons.StdinHandler())
	}

	reg := kernelspec.NewRegistry()
	inst, err := a.resolveKernelspec(reg, s, "")
	if err != nil {
		specs, serr := s.SuggestKernels(reg)
		if serr != nil || len(specs) == 0 {
			return nil, err
		}
		picked, perr := cons.ChooseKernel(specs)
		if perr != nil {
			return nil, err
		}
		inst = picked
	}
	return a.connect(ctx, s, inst.Name, "", cons.StdinHandler())
}
