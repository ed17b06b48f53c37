package top

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/pgcenter/internal/ui"
)

// HelpBinding represents a single keyboard shortcut entry.
type HelpBinding struct {
	Key  string
	Desc string
}

// helpSection groups related shortcuts in the help overlay.
type helpSection struct {
	Title    string
	Bindings []HelpBinding
}

var helpSections = []helpSection{
	{Title: "Statistics", Bindings: []HelpBinding{
		{Key: "d", Desc: "databases"},
		{Key: "r", Desc: "replication"},
		{Key: "t", Desc: "tables"},
		{Key: "i", Desc: "indexes"},
		{Key: "T", Desc: "tables I/O"},
		{Key: "S", Desc: "relation sizes"},
		{Key: "a", Desc: "long activity"},
		{Key: "f", Desc: "functions"},
		{Key: "x", Desc: "statements"},
	}},
	{Title: "Display", Bindings: []HelpBinding{
		{Key: "left / right", Desc: "Change sort column"},
		{Key: "/", Desc: "Toggle sort direction"},
		{Key: "- / +", Desc: "Faster / slower refresh"},
		{Key: "A", Desc: "Set min age for long activity"},
		{Key: "space", Desc: "Pause / resume"},
		{Key: "Ctrl+R", Desc: "Refresh all screens now"},
		{Key: "up / down", Desc: "Scroll"},
		{Key: "L", Desc: "Toggle screen log"},
	}},
	{Title: "Backends", Bindings: []HelpBinding{
		{Key: "c / k", Desc: "Cancel / terminate a pid"},
		{Key: "C / K", Desc: "Cancel / terminate groups"},
		{Key: "G", Desc: "Choose signal groups"},
	}},
	{Title: "Screens & config", Bindings: []HelpBinding{
		{Key: "1-8", Desc: "Switch screen"},
		{Key: "N / X", Desc: "Open / close screen"},
		{Key: "E", Desc: "Edit a config file"},
		{Key: "R", Desc: "Reload configuration"},
		{Key: "P", Desc: "Show pg_settings"},
		{Key: "? / Esc", Desc: "Toggle help / close"},
		{Key: "q / Ctrl+C", Desc: "Quit"},
	}},
}

// Help overlay styles
var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorInfo).
			Padding(1, 2)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true).
			Width(14)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)
)

// renderHelpOverlay renders a centered help box with keyboard shortcuts.
func (m Model) renderHelpOverlay() string {
	var columns []string
	for _, section := range helpSections {
		lines := []string{TitleStyle.Render(section.Title), ""}
		for _, b := range section.Bindings {
			lines = append(lines, helpKeyStyle.Render(b.Key)+helpDescStyle.Render(b.Desc))
		}
		columns = append(columns, lipgloss.NewStyle().MarginRight(3).Render(strings.Join(lines, "\n")))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, columns...)
	box := helpBoxStyle.Render(body + "\n\n" + LabelStyle.Render("Press ? to close"))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
	)
}
