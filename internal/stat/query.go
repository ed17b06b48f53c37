package stat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// Placeholders understood by QueryTemplate.Build.
const (
	orderPlaceholder     = "{{order}}"
	directionPlaceholder = "{{direction}}"
)

// DefaultMinAge is the age filter for long activity and group signals.
const DefaultMinAge = "00:00:10"

// ErrInvalidInterval is returned for an age filter that is not an interval literal.
var ErrInvalidInterval = errors.New(errors.ErrConfig,
	"Invalid age interval",
	"Use an interval such as 00:00:10, 00:00:10.5 or 5 min")

// QueryVariant is the SQL for servers at or above MinVersion (server_version_num).
type QueryVariant struct {
	MinVersion int
	SQL        string
}

// QueryTemplate holds the SQL of a context across server versions.
type QueryTemplate struct {
	// Variants in ascending MinVersion order.
	Variants []QueryVariant
	// TakesAge means the SQL binds the age filter as $1::interval.
	TakesAge bool
	// Ordered means the SQL carries {{order}} and {{direction}} placeholders.
	Ordered bool
}

// QueryParams are the runtime inputs of a query.
type QueryParams struct {
	ServerVersion int
	MinAge        string
	Range         *OrderRange
	OrderKey      int
	Desc          bool
}

// SQL picks the variant for a server version. Zero means unknown and picks the newest.
func (t QueryTemplate) SQL(version int) string {
	if len(t.Variants) == 0 {
		return ""
	}
	if version <= 0 {
		return t.Variants[len(t.Variants)-1].SQL
	}
	sql := t.Variants[0].SQL
	for _, v := range t.Variants {
		if version >= v.MinVersion {
			sql = v.SQL
		}
	}
	return sql
}

// Build validates params and returns the SQL text and its positional args.
func (t QueryTemplate) Build(p QueryParams) (string, []any, error) {
	sql := t.SQL(p.ServerVersion)
	var args []any

	if t.TakesAge {
		age := p.MinAge
		if age == "" {
			age = DefaultMinAge
		}
		if err := ValidateInterval(age); err != nil {
			return "", nil, err
		}
		args = append(args, age)
	}

	if t.Ordered {
		if p.Range == nil || !p.Range.Contains(p.OrderKey) {
			return "", nil, ErrInvalidOrderKey
		}
		dir := "ASC"
		if p.Desc {
			dir = "DESC"
		}
		// ORDER BY positions are 1-based.
		sql = strings.ReplaceAll(sql, orderPlaceholder, strconv.Itoa(p.OrderKey+1))
		sql = strings.ReplaceAll(sql, directionPlaceholder, dir)
	}

	return sql, args, nil
}

var (
	clockInterval = regexp.MustCompile(`^\d{1,3}:\d{2}:\d{2}(\.\d+)?$`)
	unitInterval  = regexp.MustCompile(`^\d+(\.\d+)?\s*(us|usec|ms|msec|s|sec|secs|second|seconds|m|min|mins|minute|minutes|h|hour|hours|d|day|days)$`)
)

// ValidateInterval checks that s is an interval literal the server accepts,
// such as "00:00:10", "00:00:10.0" or "5 min".
func ValidateInterval(s string) error {
	s = strings.TrimSpace(strings.ToLower(s))
	if clockInterval.MatchString(s) || unitInterval.MatchString(s) {
		return nil
	}
	return ErrInvalidInterval
}

func single(sql string) []QueryVariant {
	return []QueryVariant{{MinVersion: 0, SQL: sql}}
}

var databaseQuery = QueryTemplate{Variants: single(`SELECT
    datname,
    xact_commit AS commit, xact_rollback AS rollback,
    blks_read AS reads, blks_hit AS hits,
    tup_returned AS returned, tup_fetched AS fetched,
    tup_inserted AS inserts, tup_updated AS updates, tup_deleted AS deletes,
    conflicts,
    temp_files AS tmp_files, temp_bytes AS tmp_bytes,
    blk_read_time AS read_t, blk_write_time AS write_t
FROM pg_stat_database
WHERE datname IS NOT NULL
ORDER BY datname`)}

var replicationQuery = QueryTemplate{Variants: []QueryVariant{
	{MinVersion: 0, SQL: `SELECT
    client_addr::text AS client, application_name AS name,
    state, sync_state AS mode,
    (pg_xlog_location_diff(sent_location, '0/0') / 1024)::bigint AS "sent KB/s",
    (pg_xlog_location_diff(write_location, '0/0') / 1024)::bigint AS "write KB/s",
    (pg_xlog_location_diff(flush_location, '0/0') / 1024)::bigint AS "flush KB/s",
    (pg_xlog_location_diff(replay_location, '0/0') / 1024)::bigint AS "replay KB/s",
    (pg_xlog_location_diff(sent_location, replay_location) / 1024)::bigint AS "lag KB/s",
    pid
FROM pg_stat_replication
ORDER BY client_addr, pid`},
	{MinVersion: 100000, SQL: `SELECT
    client_addr::text AS client, application_name AS name,
    state, sync_state AS mode,
    (pg_wal_lsn_diff(sent_lsn, '0/0') / 1024)::bigint AS "sent KB/s",
    (pg_wal_lsn_diff(write_lsn, '0/0') / 1024)::bigint AS "write KB/s",
    (pg_wal_lsn_diff(flush_lsn, '0/0') / 1024)::bigint AS "flush KB/s",
    (pg_wal_lsn_diff(replay_lsn, '0/0') / 1024)::bigint AS "replay KB/s",
    (pg_wal_lsn_diff(sent_lsn, replay_lsn) / 1024)::bigint AS "lag KB/s",
    pid
FROM pg_stat_replication
ORDER BY client_addr, pid`},
}}

var tablesQuery = QueryTemplate{Variants: single(`SELECT
    schemaname || '.' || relname AS relation,
    seq_scan, seq_tup_read, idx_scan, idx_tup_fetch,
    n_tup_ins AS inserts, n_tup_upd AS updates,
    n_tup_del AS deletes, n_tup_hot_upd AS hot_updates,
    n_live_tup AS live, n_dead_tup AS dead
FROM pg_stat_user_tables
ORDER BY 1`)}

var indexesQuery = QueryTemplate{Variants: single(`SELECT
    s.schemaname || '.' || s.relname AS relation, s.indexrelname AS index,
    s.idx_scan, s.idx_tup_read, s.idx_tup_fetch,
    i.idx_blks_read, i.idx_blks_hit
FROM pg_stat_user_indexes s
JOIN pg_statio_user_indexes i ON s.indexrelid = i.indexrelid
ORDER BY 1, 2`)}

var tablesIOQuery = QueryTemplate{Variants: single(`SELECT
    schemaname || '.' || relname AS relation,
    heap_blks_read, heap_blks_hit, idx_blks_read, idx_blks_hit,
    toast_blks_read, toast_blks_hit, tidx_blks_read, tidx_blks_hit
FROM pg_statio_user_tables
ORDER BY 1`)}

var tableSizesQuery = QueryTemplate{Variants: single(`SELECT
    schemaname || '.' || relname AS relation,
    pg_total_relation_size(relid) / 1024 AS "total size, KB/s",
    pg_relation_size(relid) / 1024 AS "size w/o indexes, KB/s",
    (pg_total_relation_size(relid) - pg_relation_size(relid)) / 1024 AS "indexes, KB/s",
    pg_total_relation_size(relid) / 1024 AS "total changes, KB/s",
    pg_relation_size(relid) / 1024 AS "changes w/o indexes, KB/s",
    (pg_total_relation_size(relid) - pg_relation_size(relid)) / 1024 AS "changes indexes, KB/s"
FROM pg_stat_user_tables
ORDER BY 1`)}

var longActivityQuery = QueryTemplate{TakesAge: true, Variants: []QueryVariant{
	{MinVersion: 0, SQL: `SELECT
    pid, client_addr::text AS cl_addr, client_port AS cl_port,
    datname, usename, state, waiting::text AS waiting,
    date_trunc('seconds', clock_timestamp() - xact_start)::text AS txn_age,
    date_trunc('seconds', clock_timestamp() - query_start)::text AS query_age,
    date_trunc('seconds', clock_timestamp() - state_change)::text AS change_age,
    query
FROM pg_stat_activity
WHERE ((clock_timestamp() - xact_start) > $1::interval
    OR (clock_timestamp() - query_start) > $1::interval)
  AND state <> 'idle' AND pid <> pg_backend_pid()
ORDER BY COALESCE(xact_start, query_start)`},
	{MinVersion: 90600, SQL: `SELECT
    pid, client_addr::text AS cl_addr, client_port AS cl_port,
    datname, usename, state,
    COALESCE(wait_event_type || '.' || wait_event, 'f') AS waiting,
    date_trunc('seconds', clock_timestamp() - xact_start)::text AS txn_age,
    date_trunc('seconds', clock_timestamp() - query_start)::text AS query_age,
    date_trunc('seconds', clock_timestamp() - state_change)::text AS change_age,
    query
FROM pg_stat_activity
WHERE ((clock_timestamp() - xact_start) > $1::interval
    OR (clock_timestamp() - query_start) > $1::interval)
  AND state <> 'idle' AND pid <> pg_backend_pid()
ORDER BY COALESCE(xact_start, query_start)`},
}}

var functionsQuery = QueryTemplate{Ordered: true, Variants: single(`SELECT
    funcid, schemaname || '.' || funcname AS function,
    calls AS total_calls, calls AS "calls/s",
    date_trunc('seconds', total_time / 1000 * '1 second'::interval)::text AS total_time,
    date_trunc('seconds', self_time / 1000 * '1 second'::interval)::text AS self_time,
    round((total_time / NULLIF(calls, 0))::numeric, 4) AS "avg_time (ms)",
    round((self_time / NULLIF(calls, 0))::numeric, 4) AS "avg_self_time (ms)"
FROM pg_stat_user_functions
ORDER BY {{order}} {{direction}}`)}

var statementsQuery = QueryTemplate{Ordered: true, Variants: []QueryVariant{
	{MinVersion: 0, SQL: `SELECT
    r.rolname AS user, d.datname AS database,
    sum(p.calls) AS calls,
    sum(p.calls) AS "calls/s",
    round(sum(p.total_time)::numeric, 2) AS total_time,
    round(sum(p.blk_read_time)::numeric, 2) AS disk_read_time,
    round(sum(p.blk_write_time)::numeric, 2) AS disk_write_time,
    round((sum(p.total_time) - (sum(p.blk_read_time) + sum(p.blk_write_time)))::numeric, 2) AS cpu_time,
    sum(p.rows) AS rows,
    p.query AS query
FROM pg_stat_statements p
JOIN pg_roles r ON r.oid = p.userid
JOIN pg_database d ON d.oid = p.dbid
WHERE d.datname <> 'postgres' AND p.calls > 50
GROUP BY r.rolname, d.datname, p.query
ORDER BY {{order}} {{direction}}`},
	{MinVersion: 130000, SQL: `SELECT
    r.rolname AS user, d.datname AS database,
    sum(p.calls) AS calls,
    sum(p.calls) AS "calls/s",
    round(sum(p.total_exec_time)::numeric, 2) AS total_time,
    round(sum(p.blk_read_time)::numeric, 2) AS disk_read_time,
    round(sum(p.blk_write_time)::numeric, 2) AS disk_write_time,
    round((sum(p.total_exec_time) - (sum(p.blk_read_time) + sum(p.blk_write_time)))::numeric, 2) AS cpu_time,
    sum(p.rows) AS rows,
    p.query AS query
FROM pg_stat_statements p
JOIN pg_roles r ON r.oid = p.userid
JOIN pg_database d ON d.oid = p.dbid
WHERE d.datname <> 'postgres' AND p.calls > 50
GROUP BY r.rolname, d.datname, p.query
ORDER BY {{order}} {{direction}}`},
	{MinVersion: 170000, SQL: `SELECT
    r.rolname AS user, d.datname AS database,
    sum(p.calls) AS calls,
    sum(p.calls) AS "calls/s",
    round(sum(p.total_exec_time)::numeric, 2) AS total_time,
    round(sum(p.shared_blk_read_time)::numeric, 2) AS disk_read_time,
    round(sum(p.shared_blk_write_time)::numeric, 2) AS disk_write_time,
    round((sum(p.total_exec_time) - (sum(p.shared_blk_read_time) + sum(p.shared_blk_write_time)))::numeric, 2) AS cpu_time,
    sum(p.rows) AS rows,
    p.query AS query
FROM pg_stat_statements p
JOIN pg_roles r ON r.oid = p.userid
JOIN pg_database d ON d.oid = p.dbid
WHERE d.datname <> 'postgres' AND p.calls > 50
GROUP BY r.rolname, d.datname, p.query
ORDER BY {{order}} {{direction}}`},
}}
