package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown for the terminal.
// The style follows the terminal background.
func NewRenderer() func(string) (string, error) {
	return NewRendererWithStyle("")
}

// NewRendererWithStyle renders with a named glamour style ("dark",
// "light", "notty", ...). An empty style is detected automatically.
func NewRendererWithStyle(style string) func(string) (string, error) {
	opt := glamour.WithAutoStyle()
	if style != "" {
		opt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(80))
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
