package render

import "github.com/charmbracelet/lipgloss"

// Style controls output rendering.
type Style struct {
	PromptIn  lipgloss.Style
	PromptOut lipgloss.Style

	Stream    lipgloss.Style
	StreamErr lipgloss.Style

	ErrorTitle lipgloss.Style
	Traceback  lipgloss.Style

	Image lipgloss.Style

	Heading lipgloss.Style
	Code    lipgloss.Style
	Quote   lipgloss.Style
	Rule    lipgloss.Style
}

// DefaultStyle returns the standard color scheme.
func DefaultStyle() Style {
	return Style{
		PromptIn:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		PromptOut:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Stream:     lipgloss.NewStyle(),
		StreamErr:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		ErrorTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Traceback:  lipgloss.NewStyle(),
		Image:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		Heading:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Code:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Quote:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Rule:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// PlainStyle returns a style set with no colors or attributes, for
// pipes and tests.
func PlainStyle() Style {
	plain := lipgloss.NewStyle()
	return Style{
		PromptIn:   plain,
		PromptOut:  plain,
		Stream:     plain,
		StreamErr:  plain,
		ErrorTitle: plain,
		Traceback:  plain,
		Image:      plain,
		Heading:    plain,
		Code:       plain,
		Quote:      plain,
		Rule:       plain,
	}
}
