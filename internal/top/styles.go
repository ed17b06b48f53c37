package top

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/pgcenter/internal/ui"
)

// Thresholds for CPU severity levels
const (
	WarningThreshold  = ui.WarnPercent
	CriticalThreshold = ui.CriticalPercent
)

// Base styles for the dashboard. Colors are ANSI codes so the output follows
// the terminal theme and degrades to plain text under --no-color.
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorInfo).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ui.ColorError).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ui.ColorWarning)

	OKStyle = lipgloss.NewStyle().
		Foreground(ui.ColorSuccess)

	// Table styles
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(ui.ColorPrimary).
				Reverse(true)

	SortedHeaderStyle = lipgloss.NewStyle().
				Foreground(ui.ColorInfo).
				Reverse(true).
				Bold(true)

	FreshRowStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSecondary)

	ResetRowStyle = lipgloss.NewStyle().
			Foreground(ui.ColorWarning)

	// Screen tabs
	TabStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Background(ui.ColorSecondary).
			Bold(true).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary)

	PromptStyle = lipgloss.NewStyle().
			Foreground(ui.ColorInfo).
			Bold(true)
)

// cpuStyle returns the style for a CPU usage percentage.
func cpuStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= CriticalThreshold:
		return ErrorStyle
	case percent >= WarningThreshold:
		return WarningStyle
	default:
		return OKStyle
	}
}
