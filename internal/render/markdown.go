package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown lays a markdown source out as styled terminal text.
func (r *Renderer) Markdown(source string) string {
	src := []byte(source)
	doc := r.md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	r.renderBlocks(&b, doc, src, "")
	return strings.TrimRight(b.String(), "\n")
}

// renderBlocks walks the block-level children of n.
func (r *Renderer) renderBlocks(b *strings.Builder, n ast.Node, src []byte, indent string) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Heading:
			marker := strings.Repeat("#", node.Level)
			b.WriteString(indent)
			b.WriteString(r.style.Heading.Render(marker + " " + flattenText(node, src)))
			b.WriteString("\n\n")

		case *ast.Paragraph, *ast.TextBlock:
			writeIndented(b, flattenText(child, src), indent)
			b.WriteString("\n")
			if _, tight := child.(*ast.TextBlock); !tight {
				b.WriteString("\n")
			}

		case *ast.FencedCodeBlock:
			r.renderCode(b, node.Lines(), src, indent)
			b.WriteString("\n")

		case *ast.CodeBlock:
			r.renderCode(b, node.Lines(), src, indent)
			b.WriteString("\n")

		case *ast.List:
			r.renderList(b, node, src, indent)
			b.WriteString("\n")

		case *ast.Blockquote:
			var quoted strings.Builder
			r.renderBlocks(&quoted, node, src, "")
			for _, line := range strings.Split(strings.TrimRight(quoted.String(), "\n"), "\n") {
				b.WriteString(indent)
				b.WriteString(r.style.Quote.Render("> " + line))
				b.WriteString("\n")
			}
			b.WriteString("\n")

		case *ast.ThematicBreak:
			b.WriteString(indent)
			b.WriteString(r.style.Rule.Render(strings.Repeat("─", min(r.width, 40))))
			b.WriteString("\n\n")

		default:
			if txt := flattenText(child, src); txt != "" {
				writeIndented(b, txt, indent)
				b.WriteString("\n\n")
			}
		}
	}
}

// renderCode writes a code block indented under the current level.
func (r *Renderer) renderCode(b *strings.Builder, lines *text.Segments, src []byte, indent string) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(src)), "\n")
		b.WriteString(indent)
		b.WriteString("    ")
		b.WriteString(r.style.Code.Render(line))
		b.WriteString("\n")
	}
}

// renderList writes list items with bullets or ordinals, recursing
// into nested lists.
func (r *Renderer) renderList(b *strings.Builder, list *ast.List, src []byte, indent string) {
	ordinal := list.Start
	if ordinal == 0 {
		ordinal = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", ordinal)
			ordinal++
		}

		var itemText strings.Builder
		r.renderBlocks(&itemText, item, src, "")
		body := strings.TrimRight(itemText.String(), "\n")

		for i, line := range strings.Split(body, "\n") {
			b.WriteString(indent)
			if i == 0 {
				b.WriteString(marker)
			} else {
				b.WriteString(strings.Repeat(" ", lipgloss.Width(marker)))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
}

// flattenText collects the plain text of n's inline content.
func flattenText(n ast.Node, src []byte) string {
	var b strings.Builder
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
			if t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.AutoLink:
			b.Write(t.URL(src))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func writeIndented(b *strings.Builder, text, indent string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(indent)
		b.WriteString(line)
	}
}
