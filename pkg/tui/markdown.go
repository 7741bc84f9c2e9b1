package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Rendering is stateless, so a single renderer serves every view. Word
// wrap stays off here; the output panel wraps to its own width.
var mdRenderer *glamour.TermRenderer

func init() {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)
	if err == nil {
		mdRenderer = r
	}
}

// renderMarkdown styles a markdown string for the terminal. Any rendering
// problem degrades to the raw text, never to an error: playbook output
// must stay readable even when styling is unavailable.
func renderMarkdown(md string) string {
	if mdRenderer == nil || strings.TrimSpace(md) == "" {
		return md
	}
	styled, err := mdRenderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(styled, "\n")
}
