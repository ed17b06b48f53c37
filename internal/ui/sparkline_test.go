package ui

import (
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiSeq.ReplaceAllString(s, "")
}

func TestRenderSparkline_Empty(t *testing.T) {
	assert.Empty(t, RenderSparkline(nil, 10))
	assert.Empty(t, RenderSparkline([]float64{50}, 0))
	assert.Empty(t, RenderSparkline([]float64{50}, -1))
}

func TestRenderSparkline_FixedScale(t *testing.T) {
	// A flat line at 5% stays low instead of filling the range.
	assert.Equal(t, "▁▁▁", stripANSI(RenderSparkline([]float64{5, 5, 5}, 10)))
	assert.Equal(t, "▁▅█", stripANSI(RenderSparkline([]float64{0, 50, 100}, 10)))
}

func TestRenderSparkline_KeepsNewestPoints(t *testing.T) {
	out := stripANSI(RenderSparkline([]float64{100, 100, 0, 0}, 2))
	assert.Equal(t, "▁▁", out)
}

func TestSparkLevel_Clamps(t *testing.T) {
	assert.Equal(t, 0, sparkLevel(-20))
	assert.Equal(t, 0, sparkLevel(math.NaN()))
	assert.Equal(t, 7, sparkLevel(250))
	assert.Equal(t, 1, sparkLevel(12.5))
}

func TestPercentColor(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{0, string(ColorSuccess)},
		{59.9, string(ColorSuccess)},
		{WarnPercent, string(ColorWarning)},
		{79.9, string(ColorWarning)},
		{CriticalPercent, string(ColorError)},
		{100, string(ColorError)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(PercentColor(tt.percent)), "percent %v", tt.percent)
	}
}
