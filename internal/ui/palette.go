package ui

import "github.com/charmbracelet/lipgloss"

// ANSI palette shared by the dashboard and the command output. Using the
// 16 base colors keeps the output readable on both light and dark themes.
const (
	ColorSuccess lipgloss.Color = "2" // green, CPU below the warning level
	ColorError   lipgloss.Color = "1" // red, failed queries and critical CPU
	ColorWarning lipgloss.Color = "3" // yellow, counter resets and busy CPU
	ColorInfo    lipgloss.Color = "6" // cyan, titles and prompts
)

const (
	ColorPrimary   lipgloss.Color = "7"
	ColorSecondary lipgloss.Color = "4" // rows that appeared since the last refresh
	ColorMuted     lipgloss.Color = "8"
)

// SymbolFail marks a screen whose last refresh failed.
const SymbolFail = "✗"

// Percent thresholds for CPU and other utilisation figures.
const (
	WarnPercent     = 60.0
	CriticalPercent = 80.0
)

// PercentColor returns the palette color for a utilisation percentage.
func PercentColor(percent float64) lipgloss.Color {
	switch {
	case percent >= CriticalPercent:
		return ColorError
	case percent >= WarnPercent:
		return ColorWarning
	default:
		return ColorSuccess
	}
}
