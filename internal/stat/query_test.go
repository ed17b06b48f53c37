package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

func TestQueryTemplateVersionSelection(t *testing.T) {
	cat := NewCatalog()

	repl := cat.Resolve(Replication).Query
	assert.Contains(t, repl.SQL(90600), "pg_xlog_location_diff")
	assert.Contains(t, repl.SQL(100000), "pg_wal_lsn_diff")
	assert.Contains(t, repl.SQL(0), "pg_wal_lsn_diff", "unknown version picks the newest")

	act := cat.Resolve(LongActivity).Query
	assert.Contains(t, act.SQL(90500), "waiting::text")
	assert.Contains(t, act.SQL(90600), "wait_event")

	stmts := cat.Resolve(Statements).Query
	assert.Contains(t, stmts.SQL(120000), "sum(p.total_time)")
	assert.Contains(t, stmts.SQL(130000), "total_exec_time")
	assert.Contains(t, stmts.SQL(170000), "shared_blk_read_time")
}

func TestQueryTemplateBuildAge(t *testing.T) {
	c := NewCatalog().Resolve(LongActivity)

	sql, args, err := c.Query.Build(QueryParams{ServerVersion: 160000, MinAge: "00:00:10"})
	require.NoError(t, err)
	assert.Contains(t, sql, "$1::interval")
	assert.NotContains(t, sql, "00:00:10", "the age is bound, never spliced")
	assert.Equal(t, []any{"00:00:10"}, args)

	_, args, err = c.Query.Build(QueryParams{ServerVersion: 160000})
	require.NoError(t, err)
	assert.Equal(t, []any{DefaultMinAge}, args)

	_, _, err = c.Query.Build(QueryParams{MinAge: "10'; DROP TABLE x; --"})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestQueryTemplateBuildOrder(t *testing.T) {
	c := NewCatalog().Resolve(Functions)

	sql, args, err := c.Query.Build(QueryParams{Range: c.Order, OrderKey: 3, Desc: true})
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Contains(t, sql, "ORDER BY 4 DESC")
	assert.NotContains(t, sql, "{{")

	sql, _, err = c.Query.Build(QueryParams{Range: c.Order, OrderKey: 2, Desc: false})
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY 3 ASC")

	_, _, err = c.Query.Build(QueryParams{Range: c.Order, OrderKey: 9})
	assert.ErrorIs(t, err, ErrInvalidOrderKey)
	assert.True(t, errors.IsCode(err, errors.ErrOrder))
}

func TestQueryTemplateBuildPlain(t *testing.T) {
	c := NewCatalog().Resolve(Databases)

	sql, args, err := c.Query.Build(QueryParams{OrderKey: 99})
	require.NoError(t, err, "client-sorted contexts ignore the order key")
	assert.Nil(t, args)
	assert.Contains(t, sql, "FROM pg_stat_database")
}

func TestValidateInterval(t *testing.T) {
	valid := []string{"00:00:10", "00:00:10.0", "01:30:00", "5 min", "10s", "2 hours", "1.5 sec"}
	for _, s := range valid {
		assert.NoError(t, ValidateInterval(s), s)
	}

	invalid := []string{"", "ten seconds", "00:10", "5 fortnights", "1; select 1"}
	for _, s := range invalid {
		assert.ErrorIs(t, ValidateInterval(s), ErrInvalidInterval, s)
	}
}
