package screen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/postgres/pgtest"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

func newTestManager(t *testing.T, dialer postgres.Dialer) *Manager {
	t.Helper()
	m := NewManager(Config{
		Dialer: dialer,
		Log:    logger.NewBufferLogger(),
		LogDir: t.TempDir(),
	})
	t.Cleanup(func() { _ = m.CloseAll() })
	return m
}

func TestManagerOpenAssignsSlots(t *testing.T) {
	m := newTestManager(t, &pgtest.FakeDialer{Conn: pgtest.NewFakeConn(160000)})
	ctx := context.Background()

	for i := 1; i <= MaxScreens; i++ {
		s, err := m.Open(ctx, 0, Options{})
		require.NoError(t, err)
		assert.Equal(t, i, s.Slot())
		assert.Equal(t, s, m.Current())
	}
	assert.Equal(t, MaxScreens, m.Len())

	_, err := m.Open(ctx, 0, Options{})
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestManagerOpenExplicitSlot(t *testing.T) {
	m := newTestManager(t, &pgtest.FakeDialer{Conn: pgtest.NewFakeConn(160000)})
	ctx := context.Background()

	s, err := m.Open(ctx, 3, Options{Context: stat.Functions, MinAge: "00:02:00"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Slot())
	assert.Equal(t, stat.Functions, s.Context().ID)
	assert.Equal(t, "00:02:00", s.MinAge())

	_, err = m.Open(ctx, 3, Options{})
	assert.Error(t, err, "slot already open")
	_, err = m.Open(ctx, MaxScreens+1, Options{})
	assert.Error(t, err)

	got, ok := m.Screen(3)
	assert.True(t, ok)
	assert.Equal(t, s, got)
	_, ok = m.Screen(1)
	assert.False(t, ok)
}

func TestManagerOpenDialFailureKeepsScreen(t *testing.T) {
	m := newTestManager(t, &pgtest.FakeDialer{Err: fmt.Errorf("password authentication failed")})

	s, err := m.Open(context.Background(), 0, Options{Params: postgres.Params{Host: "db1"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConn))
	require.NotNil(t, s)
	assert.False(t, s.Connected())
	assert.Equal(t, 1, m.Len())
}

func TestManagerCloseMovesCurrent(t *testing.T) {
	conn := pgtest.NewFakeConn(160000)
	m := newTestManager(t, &pgtest.FakeDialer{Conn: conn})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Open(ctx, 0, Options{})
		require.NoError(t, err)
	}
	require.NoError(t, m.Switch(2))
	assert.Equal(t, 2, m.Current().Slot())

	require.NoError(t, m.Close(2))
	assert.Equal(t, 1, m.Current().Slot())

	require.NoError(t, m.Close(1))
	assert.Equal(t, 3, m.Current().Slot())

	assert.Error(t, m.Close(1))
	assert.Error(t, m.Switch(2))

	require.NoError(t, m.Close(3))
	assert.Nil(t, m.Current())
	assert.True(t, conn.IsClosed())
}

func TestManagerSetInterval(t *testing.T) {
	m := newTestManager(t, &pgtest.FakeDialer{Conn: pgtest.NewFakeConn(160000)})
	s, err := m.Open(context.Background(), 0, Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultInterval, m.Interval())
	assert.Equal(t, DefaultInterval+IntervalStep, m.Slower())
	assert.Equal(t, DefaultInterval+IntervalStep, s.Interval())

	for i := 0; i < 10; i++ {
		m.Faster()
	}
	assert.Equal(t, MinInterval, m.Interval())
	assert.Equal(t, MinInterval, s.Interval())

	later, err := m.Open(context.Background(), 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, MinInterval, later.Interval(), "new screens use the current interval")
}

func TestManagerRefreshAllIsolatesErrors(t *testing.T) {
	healthy := &fakeServer{}
	healthy.set(tablesResult(tableRow("t1", 1)), nil)
	m := newTestManager(t, &pgtest.FakeDialer{Conn: healthy.conn()})
	ctx := context.Background()

	_, err := m.Open(ctx, 1, Options{Context: stat.Tables})
	require.NoError(t, err)
	_, err = m.Open(ctx, 2, Options{Context: stat.Replication})
	require.NoError(t, err)

	tables := m.RefreshAll(ctx)
	require.Len(t, tables, 2)

	assert.Equal(t, 1, tables[0].Slot)
	assert.NoError(t, tables[0].Err)
	assert.Len(t, tables[0].Rows, 1)

	assert.Equal(t, 2, tables[1].Slot)
	assert.True(t, errors.IsCode(tables[1].Err, errors.ErrDiff), "replication rows do not fit a tables result")
}

func TestManagerStart(t *testing.T) {
	srv := &fakeServer{}
	srv.set(tablesResult(tableRow("t1", 1)), nil)
	m := newTestManager(t, &pgtest.FakeDialer{Conn: srv.conn()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.Open(ctx, 1, Options{Context: stat.Tables})
	require.NoError(t, err)
	updates := m.Start(ctx)

	_, err = m.Open(ctx, 2, Options{Context: stat.Tables})
	require.NoError(t, err)

	seen := map[int]bool{}
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case table := <-updates:
			seen[table.Slot] = true
		case <-deadline:
			t.Fatalf("got tables from %v only", seen)
		}
	}
}

func TestManagerCloseAll(t *testing.T) {
	conn := pgtest.NewFakeConn(160000)
	m := newTestManager(t, &pgtest.FakeDialer{Conn: conn})
	for i := 0; i < 3; i++ {
		_, err := m.Open(context.Background(), 0, Options{})
		require.NoError(t, err)
	}

	require.NoError(t, m.CloseAll())
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Current())
	assert.True(t, conn.IsClosed())
}
