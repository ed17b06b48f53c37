package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSimpleTable_Empty(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "name", Width: 10}}, nil))
}

func TestRenderSimpleTable(t *testing.T) {
	columns := []TableColumn{
		{Title: "name", Width: 40},
		{Title: "setting", Width: 30},
	}
	rows := [][]string{
		{"shared_buffers", "16384"},
		{"work_mem", "4096"},
	}

	out := stripANSI(RenderSimpleTable(columns, rows))
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[0], "name")
	assert.Contains(t, lines[0], "setting")
	assert.Contains(t, out, "shared_buffers")
	assert.Contains(t, out, "work_mem")
}

func TestFitColumns(t *testing.T) {
	columns := []TableColumn{
		{Title: "name", Width: 40},
		{Title: "setting", Width: 3},
		{Title: "unit"},
	}
	rows := [][]string{
		{"max_connections", "100", "kB"},
		{"search_path", `"$user", public`},
	}

	cols := fitColumns(columns, rows)
	require.Len(t, cols, 3)
	assert.Equal(t, lipgloss.Width("max_connections"), cols[0].Width)
	assert.Equal(t, 3, cols[1].Width, "capped at the column width")
	assert.Equal(t, 4, cols[2].Width, "title is the widest cell")
}
