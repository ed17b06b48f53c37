package top

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// formatValue renders a table cell. Whole numbers get thousands separators,
// fractions keep two decimals.
func formatValue(v stat.Value) string {
	switch v.Kind {
	case stat.TextValue:
		return v.Str
	case stat.NumberValue:
		if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1e15 {
			return humanize.Comma(int64(v.Num))
		}
		return humanize.FormatFloat("#,###.##", v.Num)
	default:
		return ""
	}
}

// formatUptime renders an uptime as "3 days, 04:05".
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	clock := fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}

// formatBoot renders when the host booted relative to now, e.g. "3 days ago".
func formatBoot(uptime time.Duration, now time.Time) string {
	if uptime <= 0 {
		return "-"
	}
	return humanize.RelTime(now.Add(-uptime), now, "ago", "from now")
}

// fit pads or truncates s to exactly width display cells.
func fit(s string, width int, alignRight bool) string {
	if width <= 0 {
		return ""
	}
	w := runewidth.StringWidth(s)
	if w > width {
		return runewidth.Truncate(s, width, "…")
	}
	pad := strings.Repeat(" ", width-w)
	if alignRight {
		return pad + s
	}
	return s + pad
}
