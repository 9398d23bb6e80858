// Package tui provides Bubble Tea views for the drover CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - Read surfaces (history, tune) use the same data payloads as
//     non-TUI rendering; no TUI-exclusive data allowed
//   - The live run view is driven by the same progress snapshots the
//     wire protocol carries
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#2DD4BF") // teal
	good    = lipgloss.Color("#22C55E")
	caution = lipgloss.Color("#EAB308")
	bad     = lipgloss.Color("#F87171")
	dim     = lipgloss.Color("#71717A")
	bright  = lipgloss.Color("#FAFAFA")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().Foreground(dim).Width(16)
	ValueStyle = lipgloss.NewStyle().Foreground(bright)

	SuccessStyle = lipgloss.NewStyle().Foreground(good)
	WarningStyle = lipgloss.NewStyle().Foreground(caution)
	ErrorStyle   = lipgloss.NewStyle().Foreground(bad)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().Foreground(dim).MarginTop(1)

	// ScrollbackStyle for retained tool output lines in the live view.
	ScrollbackStyle = lipgloss.NewStyle().Foreground(dim)

	// Stat boxes sit in a row above tabular content; fixed width keeps
	// them aligned regardless of value length.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(dim).Align(lipgloss.Center)
	StatValueStyle = lipgloss.NewStyle().Bold(true).Foreground(bright).Align(lipgloss.Center)
)

// StateStyle colors a transfer status or run outcome label.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "completed", "success":
		return SuccessStyle
	case "in_progress", "paused":
		return WarningStyle
	case "failed", "timed_out", "cancelled", "spawn_failed", "execution_failed":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
