// Package ui holds the presentation pieces shared by the dashboard and the
// plain command output: the ANSI palette, the CPU sparkline and static
// tables.
//
// Colors are ANSI codes so the terminal theme decides the actual shades.
// Under --no-color or NO_COLOR the lipgloss profile is switched to ASCII
// and every style renders as plain text.
//
//	ui.RenderSparkline(history, 20)   // ▁▁▂▅▇█ colored by the newest value
//	ui.RenderSimpleTable(cols, rows)  // pg_settings listings
//
// Percentages at or above WarnPercent render yellow and at or above
// CriticalPercent red.
package ui
