package console

import (
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Ship palette
var (
	Amber = lipgloss.Color("#FFB300")
	Cyan  = lipgloss.Color("#4DD0E1")
	Green = lipgloss.Color("#8BC34A")
	Red   = lipgloss.Color("#E53935")
	Muted = lipgloss.Color("#78909C")
)

// Styles holds the console's text styles
type Styles struct {
	Banner lipgloss.Style
	Prompt lipgloss.Style
	Crew   lipgloss.Style
	Tool   lipgloss.Style
	Error  lipgloss.Style
	Info   lipgloss.Style
}

// NewStyles builds styles for w. Colors are dropped when w is not a terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Banner: r.NewStyle().Foreground(Amber).Bold(true),
		Prompt: r.NewStyle().Foreground(Cyan),
		Crew:   r.NewStyle().Foreground(Cyan).Bold(true),
		Tool:   r.NewStyle().Foreground(Green),
		Error:  r.NewStyle().Foreground(Red),
		Info:   r.NewStyle().Foreground(Muted),
	}
}

// newMarkdownRenderer returns a glamour renderer for crew replies
func newMarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}
