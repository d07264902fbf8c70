package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/bengtfrost/nbkernel/internal/kernel"
	"github.com/bengtfrost/nbkernel/internal/render"
	"github.com/bengtfrost/nbkernel/internal/session"
	"github.com/bengtfrost/nbkernel/internal/watch"
	"github.com/bengtfrost/nbkernel/internal/wire"
)

// Kernel is the client surface the console drives. *kernel.Client
// satisfies it; tests substitute a fake.
type Kernel interface {
	session.Runner
	Interrupt(ctx context.Context) error
	Restart(ctx context.Context) error
	IsComplete(ctx context.Context, code string) (*wire.IsCompleteReply, error)
	Status() kernel.Status
	KernelInfo() *wire.KernelInfoReply
	Owned() bool
}

// interruptTimeout bounds the interrupt request fired from Ctrl-C.
const interruptTimeout = 5 * time.Second

// Console is a line-oriented REPL bound to one session and one kernel.
type Console struct {
	sess    *session.Session
	kernel  Kernel
	watcher *watch.Watcher
	render  *render.Renderer
	log     zerolog.Logger

	in  *bufio.Reader
	src io.Reader
	out io.Writer

	navLine   int
	nextCount int
	executing atomic.Bool
	quit      bool
}

// Option configures a Console.
type Option func(*Console)

// WithRenderer sets the output renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(c *Console) { c.render = r }
}

// WithLogger sets the logger for watcher and interrupt notices.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Console) { c.log = log }
}

// WithInput sets the input stream. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(c *Console) { c.src = r }
}

// WithOutput sets the transcript writer. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Console) { c.out = w }
}

// WithWatcher hands the console a watcher whose events should trigger
// session reloads. The caller keeps ownership and closes it.
func WithWatcher(w *watch.Watcher) Option {
	return func(c *Console) { c.watcher = w }
}

// New builds a console over an open session. A kernel must be attached
// with SetKernel before Run.
func New(sess *session.Session, opts ...Option) *Console {
	c := &Console{
		sess:      sess,
		render:    render.New(),
		log:       zerolog.Nop(),
		src:       os.Stdin,
		out:       os.Stdout,
		nextCount: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.in = bufio.NewReader(c.src)
	return c
}

// SetKernel binds the kernel client. Separate from New so the caller can
// build the client with the console's StdinHandler first.
func (c *Console) SetKernel(k Kernel) {
	c.kernel = k
}

// StdinHandler answers kernel input prompts from the console's input
// stream. Only called while an execute is in flight, so it never races
// the REPL loop for the reader.
func (c *Console) StdinHandler() kernel.StdinHandler {
	return func(prompt string, password bool) (string, error) {
		fmt.Fprintf(c.out, "%s", prompt)
		if password {
			if f, ok := c.src.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				b, err := term.ReadPassword(int(f.Fd()))
				fmt.Fprintln(c.out)
				return string(b), err
			}
		}
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// Run drives the REPL until :quit, EOF, or context cancellation.
func (c *Console) Run(ctx context.Context) error {
	if c.kernel == nil {
		return errors.New("console: no kernel attached")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go c.interruptLoop(sigCh)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	if c.watcher != nil {
		go c.watchLoop(ctx)
	}

	c.printBanner()
	for !c.quit {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, ok := c.readLine(c.render.InPrompt(c.nextCount))
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, ":"):
			c.dispatch(ctx, trimmed)
		default:
			c.evalInput(ctx, line)
		}
	}
	if c.sess.Dirty() {
		c.printf("Discarding %d unsynced cell(s).\n", len(c.sess.StagedCells()))
	}
	return nil
}

func (c *Console) printBanner() {
	c.printf("Attached to %s (%d cells", c.sess.Path(), c.sess.NumCells())
	if lang := c.sess.Language(); lang != "" {
		c.printf(", %s", lang)
	}
	c.printf(")\n")
	if info := c.kernel.KernelInfo(); info != nil && info.Banner != "" {
		banner, _, _ := strings.Cut(info.Banner, "\n")
		c.printf("%s\n", banner)
	}
	c.printf("Type :help for commands, :quit to exit.\n\n")
}

// interruptLoop forwards Ctrl-C to the kernel while an execute is in
// flight. At the prompt it only prints a hint; the read stays blocked.
func (c *Console) interruptLoop(sigCh chan os.Signal) {
	for range sigCh {
		if !c.executing.Load() {
			c.printf("\n(:quit to exit)\n")
			continue
		}
		ictx, cancel := context.WithTimeout(context.Background(), interruptTimeout)
		if err := c.kernel.Interrupt(ictx); err != nil {
			c.log.Warn().Err(err).Msg("interrupt failed")
		}
		cancel()
	}
}

// watchLoop reloads the session when the notebook changes on disk.
// Notices go through the logger so they do not tear the transcript.
func (c *Console) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			if ev.Op.Gone() {
				c.log.Warn().Str("path", ev.Path).Msg("notebook removed from disk")
				continue
			}
			res, err := c.sess.Reload()
			if err != nil {
				c.log.Warn().Err(err).Msg("reload after disk change failed")
				continue
			}
			if res.Changed {
				c.log.Info().Int("cells", res.Cells).Ints("dropped", res.Dropped).
					Msg("notebook reloaded from disk")
			}
		case err, ok := <-c.watcher.Errors():
			if !ok {
				return
			}
			c.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// readLine prints the prompt and reads one line. ok is false at EOF.
func (c *Console) readLine(prompt string) (string, bool) {
	fmt.Fprintf(c.out, "%s ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil {
		if line == "" {
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}

// contPrompt aligns the continuation marker under the input prompt.
func (c *Console) contPrompt() string {
	pad := lipgloss.Width(c.render.InPrompt(c.nextCount)) - len("...:")
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + "...:"
}

// evalInput collects further lines while the kernel reports the code
// incomplete, then executes it. A blank line forces submission.
func (c *Console) evalInput(ctx context.Context, first string) {
	code := first
	for {
		rep, err := c.kernel.IsComplete(ctx, code)
		if err != nil || rep == nil || rep.Status != "incomplete" {
			break
		}
		cont, ok := c.readLine(c.contPrompt())
		if !ok {
			break
		}
		if strings.TrimSpace(cont) == "" {
			break
		}
		code += "\n" + cont
	}
	c.execute(ctx, code)
}

// execute sends ad-hoc code through the session and renders the result.
func (c *Console) execute(ctx context.Context, code string) {
	c.executing.Store(true)
	res, err := c.sess.EvalCode(ctx, code, session.EvalOptions{AllowStdin: true})
	c.executing.Store(false)
	if err != nil {
		if errors.Is(err, session.ErrEmptySource) {
			return
		}
		c.printf("error: %v\n", err)
		return
	}
	c.showResult(res)
}

// showResult prints rendered outputs and advances the prompt counter.
func (c *Console) showResult(res *kernel.Result) {
	if res.ExecutionCount > 0 {
		c.nextCount = res.ExecutionCount + 1
	}
	if out := c.render.Outputs(res.Outputs); out != "" {
		c.printf("%s\n", out)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
