package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

func TestActivitySummaryQuery(t *testing.T) {
	assert.Contains(t, ActivitySummaryQuery(90500), "FILTER (WHERE waiting)")
	assert.Contains(t, ActivitySummaryQuery(100000), "wait_event_type = 'Lock'")
	assert.Contains(t, ActivitySummaryQuery(0), "wait_event_type = 'Lock'")
}

func TestParseActivitySummary(t *testing.T) {
	res := &postgres.Result{
		Columns: []string{"total", "idle", "idle_in_xact", "active", "waiting", "others", "av_workers", "av_wraparound", "av_longest"},
		Rows:    [][]any{{int64(20), int64(12), int64(2), int64(5), int64(1), int64(0), int64(3), int64(1), "00:04:10"}},
	}

	s, err := ParseActivitySummary(res)
	require.NoError(t, err)
	assert.Equal(t, ActivitySummary{
		Total:                20,
		Idle:                 12,
		IdleInXact:           2,
		Active:               5,
		Waiting:              1,
		Autovacuum:           3,
		AutovacuumWraparound: 1,
		LongestAutovacuum:    "00:04:10",
	}, s)
}

func TestParseActivitySummaryBadShape(t *testing.T) {
	_, err := ParseActivitySummary(nil)
	assert.Error(t, err)

	_, err = ParseActivitySummary(&postgres.Result{Rows: [][]any{{int64(1)}}})
	assert.Error(t, err)

	bad := &postgres.Result{Rows: [][]any{{"x", int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), "00:00:00"}}}
	_, err = ParseActivitySummary(bad)
	assert.Error(t, err)
}
