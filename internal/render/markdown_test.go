package render

import (
	"strings"
	"testing"
)

func TestRenderer_Markdown(t *testing.T) {
	r := plainRenderer()

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "heading and paragraph",
			source: "# Title\n\nSome text.",
			want:   "# Title\n\nSome text.",
		},
		{
			name:   "soft line break joins",
			source: "one\ntwo",
			want:   "one two",
		},
		{
			name:   "hard line break splits",
			source: "one  \ntwo",
			want:   "one\ntwo",
		},
		{
			name:   "inline markup flattened",
			source: "some *emphasis* and `code`",
			want:   "some emphasis and code",
		},
		{
			name:   "link text kept",
			source: "see [the docs](https://example.com/docs)",
			want:   "see the docs",
		},
		{
			name:   "autolink url kept",
			source: "visit <https://example.com>",
			want:   "visit https://example.com",
		},
		{
			name:   "fenced code block",
			source: "```python\nprint('hi')\n```",
			want:   "    print('hi')",
		},
		{
			name:   "indented code block",
			source: "Intro:\n\n    x = 1\n    y = 2",
			want:   "Intro:\n\n    x = 1\n    y = 2",
		},
		{
			name:   "unordered list",
			source: "- alpha\n- beta",
			want:   "• alpha\n• beta",
		},
		{
			name:   "ordered list",
			source: "1. first\n2. second",
			want:   "1. first\n2. second",
		},
		{
			name:   "ordered list start offset",
			source: "3. third\n4. fourth",
			want:   "3. third\n4. fourth",
		},
		{
			name:   "nested list",
			source: "- outer\n  - inner",
			want:   "• outer\n  • inner",
		},
		{
			name:   "blockquote",
			source: "> wisdom here",
			want:   "> wisdom here",
		},
		{
			name:   "multi paragraph",
			source: "first para\n\nsecond para",
			want:   "first para\n\nsecond para",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Markdown(tt.source); got != tt.want {
				t.Errorf("Markdown(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestRenderer_Markdown_ThematicBreak(t *testing.T) {
	r := New(WithColor(false), WithWidth(10))

	got := r.Markdown("above\n\n---\n\nbelow")
	want := "above\n\n" + strings.Repeat("─", 10) + "\n\nbelow"
	if got != want {
		t.Errorf("Markdown = %q, want %q", got, want)
	}
}

func TestRenderer_Markdown_Document(t *testing.T) {
	r := plainRenderer()

	source := "# Report\n\nValues computed:\n\n- mean\n- median\n\n```\ntotal = 10\n```"
	want := "# Report\n\nValues computed:\n\n• mean\n• median\n\n    total = 10"
	if got := r.Markdown(source); got != want {
		t.Errorf("Markdown = %q, want %q", got, want)
	}
}

func TestRenderer_Markdown_Heading_Levels(t *testing.T) {
	r := plainRenderer()

	if got := r.Markdown("### Deep"); got != "### Deep" {
		t.Errorf("Markdown = %q, want %q", got, "### Deep")
	}
}
