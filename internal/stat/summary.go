package stat

import (
	"fmt"

	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

// ActivitySummary is the connection overview shown above the table.
type ActivitySummary struct {
	Total                int64
	Idle                 int64
	IdleInXact           int64
	Active               int64
	Waiting              int64
	Others               int64
	Autovacuum           int64
	AutovacuumWraparound int64
	LongestAutovacuum    string
}

const summaryTemplate = `SELECT
    count(*) AS total,
    count(*) FILTER (WHERE state = 'idle') AS idle,
    count(*) FILTER (WHERE state IN ('idle in transaction', 'idle in transaction (aborted)')) AS idle_in_xact,
    count(*) FILTER (WHERE state = 'active') AS active,
    count(*) FILTER (WHERE %s) AS waiting,
    count(*) FILTER (WHERE state NOT IN ('active', 'idle', 'idle in transaction', 'idle in transaction (aborted)')) AS others,
    count(*) FILTER (WHERE query ~* '^autovacuum:' AND pid <> pg_backend_pid()) AS av_workers,
    count(*) FILTER (WHERE query ~* '^autovacuum:.*to prevent wraparound' AND pid <> pg_backend_pid()) AS av_wraparound,
    COALESCE(date_trunc('seconds', max(now() - xact_start) FILTER (WHERE query ~* '^autovacuum:' AND pid <> pg_backend_pid())), '00:00:00')::text AS av_longest
FROM pg_stat_activity`

// ActivitySummaryQuery returns the summary SQL for a server version.
func ActivitySummaryQuery(version int) string {
	waiting := "wait_event_type = 'Lock'"
	if version > 0 && version < 90600 {
		waiting = "waiting"
	}
	return fmt.Sprintf(summaryTemplate, waiting)
}

// ParseActivitySummary reads the single row produced by ActivitySummaryQuery.
func ParseActivitySummary(res *postgres.Result) (ActivitySummary, error) {
	if res == nil || len(res.Rows) != 1 || len(res.Rows[0]) < 9 {
		return ActivitySummary{}, fmt.Errorf("unexpected activity summary shape")
	}
	row := res.Rows[0]
	counts := make([]int64, 8)
	for i := range counts {
		v := ValueOf(row[i])
		if v.Kind != NumberValue {
			return ActivitySummary{}, fmt.Errorf("activity summary column %d is not a number", i)
		}
		counts[i] = int64(v.Num)
	}
	return ActivitySummary{
		Total:                counts[0],
		Idle:                 counts[1],
		IdleInXact:           counts[2],
		Active:               counts[3],
		Waiting:              counts[4],
		Others:               counts[5],
		Autovacuum:           counts[6],
		AutovacuumWraparound: counts[7],
		LongestAutovacuum:    ValueOf(row[8]).String(),
	}, nil
}
