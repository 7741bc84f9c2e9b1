// Package tui implements a terminal runner for playbooks: a Bubble Tea
// app showing the block list with live execution status, a preview of
// the current block, and pause/stop controls.
package tui

import "github.com/charmbracelet/lipgloss"

// Block status glyphs — convey meaning without relying on color alone.
const (
	GlyphPending = "○"
	GlyphCurrent = "▸"
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
	GlyphSkipped = "⏭"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var stateBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

var (
	blockNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	blockCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	blockPassed = lipgloss.NewStyle().
			Foreground(colorGreen)

	blockFailed = lipgloss.NewStyle().
			Foreground(colorRed)

	blockSkipped = lipgloss.NewStyle().
			Faint(true)
)

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)
)

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)
