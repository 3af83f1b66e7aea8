// Package tui provides the Bubble Tea flash progress view.
//
// The TUI is opt-in (--tui) and purely observational: it renders the
// worker task's state and counters, and quitting the view never
// cancels the underlying flash.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
	accentColor  = lipgloss.Color("#3B82F6") // Blue
)

var (
	// TitleStyle for the view header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	// StageStyle for the current pipeline stage.
	StageStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// DoneStyle for a completed flash.
	DoneStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// FailedStyle for a failed flash.
	FailedStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	// CounterStyle for the byte counters.
	CounterStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
