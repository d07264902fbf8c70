package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/bengtfrost/nbkernel/internal/config"
	"github.com/bengtfrost/nbkernel/internal/render"
)

// Semantic exit codes.
const (
	ExitSuccess           = 0
	ExitExecFailure       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// InvocationError is a command-line error carrying its exit code.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ExitCode extracts a semantic exit code from an error. Unknown errors
// map to ExitExecFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitExecFailure
}

// app carries the state shared by every subcommand.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	stdout  io.Writer
	stderr  io.Writer
	noColor bool
}

// Run executes one invocation and returns its exit code. It never calls
// os.Exit and writes only to the given streams.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nbkernel", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var (
		configPath string
		logLevel   string
		noColor    bool
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration file")
	fs.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	fs.BoolVar(&noColor, "no-color", false, "Disable styled output")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stdout, fs)
			return ExitSuccess
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidInvocation
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return ExitInvalidInvocation
	}
	cmd, rest := rest[0], rest[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "nbkernel %s\n", Version)
		fmt.Fprintf(stdout, "Commit: %s\n", Commit)
		fmt.Fprintf(stdout, "Built: %s\n", Date)
		return ExitSuccess
	}
	if cmd == "help" {
		usage(stdout, fs)
		return ExitSuccess
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	a := &app{
		cfg:     cfg,
		log:     newLogger(stderr, cfg.LogLevel),
		stdout:  stdout,
		stderr:  stderr,
		noColor: noColor,
	}

	switch cmd {
	case "kernels":
		return a.cmdKernels(rest)
	case "register":
		return a.cmdRegister(rest)
	case "remove":
		return a.cmdRemove(rest)
	case "import":
		return a.cmdImport(rest)
	case "cells":
		return a.cmdCells(rest)
	case "clear":
		return a.cmdClear(rest)
	case "run":
		return a.cmdRun(ctx, rest)
	case "attach":
		return a.cmdAttach(ctx, rest)
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", cmd)
		usage(stderr, fs)
		return ExitInvalidInvocation
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "nbkernel - Jupyter kernels for notebooks edited as raw text\n\n")
	fmt.Fprintf(w, "Usage: nbkernel [options] <command> [command options] [args]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  kernels             List installed kernelspecs\n")
	fmt.Fprintf(w, "  register            Register a kernelspec\n")
	fmt.Fprintf(w, "  remove <name>       Remove an installed kernelspec\n")
	fmt.Fprintf(w, "  import <notebook>   Print the outputs stored in a notebook\n")
	fmt.Fprintf(w, "  cells <notebook>    Show the cell table with line spans\n")
	fmt.Fprintf(w, "  clear <notebook>    Clear outputs and write the notebook\n")
	fmt.Fprintf(w, "  run <notebook>      Execute every code cell and write outputs back\n")
	fmt.Fprintf(w, "  attach <notebook>   Open the interactive console\n")
	fmt.Fprintf(w, "  version             Show version information\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
}

// renderer builds the output renderer for one command, honoring the
// color mode from config, the -no-color flag, and whether the stream is
// a terminal.
func (a *app) renderer() *render.Renderer {
	color := false
	switch a.cfg.Render.Color {
	case "always":
		color = true
	case "never":
		color = false
	default: // auto
		if f, ok := a.stdout.(*os.File); ok {
			color = render.IsTerminal(f)
		}
	}
	if a.noColor {
		color = false
	}
	opts := []render.Option{render.WithColor(color)}
	if a.cfg.Render.Width > 0 {
		opts = append(opts, render.WithWidth(a.cfg.Render.Width))
	}
	return render.New(opts...)
}

// fail prints err and maps it to an exit code.
func (a *app) fail(err error) int {
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return ExitCode(err)
}
