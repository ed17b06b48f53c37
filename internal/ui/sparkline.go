package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline draws the last width percentages of data on a fixed
// 0..100 scale, so a quiet host stays flat instead of being stretched to
// the full height. The line takes the color of the newest value.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for _, v := range data {
		sb.WriteRune(sparkLevels[sparkLevel(v)])
	}

	last := clampPercent(data[len(data)-1])
	return lipgloss.NewStyle().Foreground(PercentColor(last)).Render(sb.String())
}

// sparkLevel maps a percentage to an index into sparkLevels.
func sparkLevel(percent float64) int {
	top := len(sparkLevels) - 1
	level := int(clampPercent(percent)/100*float64(top) + 0.5)
	if level > top {
		level = top
	}
	return level
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
