package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn is a column of a static table. Width is the widest the column
// may grow; narrower content shrinks it. Zero means no limit.
type TableColumn struct {
	Title string
	Width int
}

// RenderSimpleTable renders rows as a static, non-interactive table with a
// ruled header. Cells wider than their column are truncated by the table.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := table.New(
		table.WithColumns(fitColumns(columns, rows)),
		table.WithRows(tableRows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Unfocused tables still highlight the cursor row; make it look like any other.
	s.Selected = s.Cell
	t.SetStyles(s)

	return t.View()
}

// fitColumns sizes each column to its widest cell or title, capped at the
// column's Width.
func fitColumns(columns []TableColumn, rows [][]string) []table.Column {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		w := lipgloss.Width(c.Title)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, lipgloss.Width(row[i]))
			}
		}
		if c.Width > 0 {
			w = min(w, c.Width)
		}
		cols[i] = table.Column{Title: c.Title, Width: w}
	}
	return cols
}
