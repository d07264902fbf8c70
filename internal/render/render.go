package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"golang.org/x/term"

	"github.com/bengtfrost/nbkernel/internal/nbformat"
)

// imageMIMEs in placeholder preference order.
var imageMIMEs = []string{"image/png", "image/jpeg", "image/gif", "image/svg+xml"}

// Renderer formats outputs for one terminal.
type Renderer struct {
	style Style
	color bool
	width int
	md    goldmark.Markdown
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStyle replaces the default style set.
func WithStyle(s Style) Option {
	return func(r *Renderer) { r.style = s }
}

// WithColor toggles color output. Disabling it swaps in PlainStyle and
// strips ANSI escapes embedded in kernel output.
func WithColor(enabled bool) Option {
	return func(r *Renderer) { r.color = enabled }
}

// WithWidth sets the target width used for horizontal rules.
func WithWidth(w int) Option {
	return func(r *Renderer) {
		if w > 0 {
			r.width = w
		}
	}
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		style: DefaultStyle(),
		color: true,
		width: 80,
		md:    goldmark.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.color {
		r.style = PlainStyle()
	}
	return r
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// InPrompt formats the input prompt for an execution counter.
func (r *Renderer) InPrompt(count int) string {
	return r.style.PromptIn.Render(fmt.Sprintf("In [%d]:", count))
}

// OutPrompt formats the result prompt for an execution counter.
func (r *Renderer) OutPrompt(count int) string {
	return r.style.PromptOut.Render(fmt.Sprintf("Out[%d]:", count))
}

// CellPrompt formats the input prompt for a stored execution counter,
// blank for a cell that never ran.
func (r *Renderer) CellPrompt(count *int) string {
	if count == nil {
		return r.style.PromptIn.Render("In [ ]:")
	}
	return r.InPrompt(*count)
}

// Output renders a single output without a trailing newline.
func (r *Renderer) Output(o nbformat.Output) string {
	switch o.Type {
	case nbformat.OutputTypeStream:
		text := strings.TrimRight(r.sanitize(o.Text.Join()), "\n")
		if o.Name == "stderr" {
			return styleLines(r.style.StreamErr, text)
		}
		return styleLines(r.style.Stream, text)

	case nbformat.OutputTypeExecuteResult:
		body := r.bundle(o.Data)
		if o.ExecutionCount != nil {
			return r.OutPrompt(*o.ExecutionCount) + " " + body
		}
		return body

	case nbformat.OutputTypeDisplayData:
		return r.bundle(o.Data)

	case nbformat.OutputTypeError:
		if len(o.Traceback) > 0 {
			return strings.TrimRight(r.sanitize(strings.Join(o.Traceback, "\n")), "\n")
		}
		return r.style.ErrorTitle.Render(o.ErrName+": ") + o.ErrValue

	default:
		return ""
	}
}

// Outputs renders a sequence of outputs joined by newlines.
func (r *Renderer) Outputs(outs []nbformat.Output) string {
	parts := make([]string, 0, len(outs))
	for _, o := range outs {
		if rendered := r.Output(o); rendered != "" {
			parts = append(parts, rendered)
		}
	}
	return strings.Join(parts, "\n")
}

// bundle picks the richest representation a terminal can show.
func (r *Renderer) bundle(data nbformat.MIMEBundle) string {
	var parts []string

	for _, mime := range imageMIMEs {
		if payload, ok := data.Text(mime); ok {
			parts = append(parts, r.style.Image.Render(imagePlaceholder(mime, payload)))
			break
		}
	}

	switch {
	case data.Has("text/markdown"):
		if md, ok := data.Text("text/markdown"); ok {
			parts = append(parts, r.Markdown(md))
		}
	case data.Has("text/latex"):
		if tex, ok := data.Text("text/latex"); ok {
			parts = append(parts, strings.TrimRight(r.sanitize(tex), "\n"))
		}
	case data.Has("text/plain"):
		if txt, ok := data.Text("text/plain"); ok {
			parts = append(parts, strings.TrimRight(r.sanitize(txt), "\n"))
		}
	case data.Has("text/html"):
		if html, ok := data.Text("text/html"); ok && len(parts) == 0 {
			parts = append(parts, r.style.Image.Render(fmt.Sprintf("[text/html %s]", formatSize(len(html)))))
		}
	}

	return strings.Join(parts, "\n")
}

// styleLines styles text one line at a time. Styling a multi-line
// string as a single block pads short lines out to the widest one.
func styleLines(s lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = s.Render(line)
	}
	return strings.Join(lines, "\n")
}

// sanitize strips kernel-embedded escape sequences when color is off.
func (r *Renderer) sanitize(s string) string {
	if r.color {
		return s
	}
	return StripANSI(s)
}

// imagePlaceholder names an image payload and its decoded size.
func imagePlaceholder(mime, payload string) string {
	size := len(payload)
	if mime != "image/svg+xml" {
		// Payload is base64.
		size = size * 3 / 4
	}
	return fmt.Sprintf("[%s %s]", mime, formatSize(size))
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
