package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

func TestSetOrder(t *testing.T) {
	cat := NewCatalog()
	dbs := cat.Resolve(Databases)

	s := DefaultOrder(dbs)
	assert.Equal(t, OrderState{Key: 1, Desc: true}, s)

	require.NoError(t, s.SetOrder(dbs, 14))
	assert.Equal(t, 14, s.Key)

	err := s.SetOrder(dbs, 15)
	assert.ErrorIs(t, err, ErrInvalidOrderKey)
	assert.True(t, errors.IsCode(err, errors.ErrOrder))
	assert.Equal(t, 14, s.Key, "a rejected key leaves the state unchanged")

	assert.ErrorIs(t, s.SetOrder(dbs, 0), ErrInvalidOrderKey)
}

func TestSetOrderUnorderable(t *testing.T) {
	act := NewCatalog().Resolve(LongActivity)

	s := OrderState{Key: 3, Desc: true}
	assert.NoError(t, s.SetOrder(act, 99))
	s.ToggleDirection(act)
	s.Next(act)
	s.Prev(act)
	assert.Equal(t, OrderState{Key: 3, Desc: true}, s)
}

func TestNextPrevStayInRange(t *testing.T) {
	idx := NewCatalog().Resolve(Indexes)
	s := DefaultOrder(idx)

	s.Prev(idx)
	assert.Equal(t, 2, s.Key)

	for i := 0; i < 10; i++ {
		s.Next(idx)
	}
	assert.Equal(t, 6, s.Key)

	s.Prev(idx)
	assert.Equal(t, 5, s.Key)
}

func TestToggleAndReset(t *testing.T) {
	cat := NewCatalog()
	dbs := cat.Resolve(Databases)
	stmts := cat.Resolve(Statements)

	s := DefaultOrder(dbs)
	s.ToggleDirection(dbs)
	assert.False(t, s.Desc)
	require.NoError(t, s.SetOrder(dbs, 12))

	s.ResetOrder(stmts)
	assert.Equal(t, OrderState{Key: 2, Desc: true}, s)
}

func TestApplyStable(t *testing.T) {
	rows := []DiffRow{
		{Key: "a", Values: []Value{TextOf("a"), IntOf(5)}},
		{Key: "b", Values: []Value{TextOf("b"), IntOf(3)}},
		{Key: "c", Values: []Value{TextOf("c"), IntOf(5)}},
		{Key: "d", Values: []Value{TextOf("d"), Null}},
		{Key: "e", Values: []Value{TextOf("e"), IntOf(3)}},
	}

	keys := func(rs []DiffRow) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Key
		}
		return out
	}

	assert.Equal(t, []string{"a", "c", "b", "e", "d"}, keys(Apply(rows, 1, true)))
	assert.Equal(t, []string{"b", "e", "a", "c", "d"}, keys(Apply(rows, 1, false)))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys(rows), "input is not modified")
}

func TestApplyNumericNotLexical(t *testing.T) {
	rows := []DiffRow{
		{Key: "x", Values: []Value{IntOf(9)}},
		{Key: "y", Values: []Value{IntOf(10)}},
		{Key: "z", Values: []Value{FloatOf(9.5)}},
	}

	sorted := Apply(rows, 0, true)
	assert.Equal(t, "y", sorted[0].Key)
	assert.Equal(t, "z", sorted[1].Key)
	assert.Equal(t, "x", sorted[2].Key)
}

func TestApplyText(t *testing.T) {
	rows := []DiffRow{
		{Key: "2", Values: []Value{TextOf("beta")}},
		{Key: "1", Values: []Value{TextOf("alpha")}},
		{Key: "3", Values: []Value{TextOf("gamma")}},
	}

	sorted := Apply(rows, 0, false)
	assert.Equal(t, "1", sorted[0].Key)
	assert.Equal(t, "3", sorted[2].Key)
}

func TestApplyOutOfRangeKeyKeepsOrder(t *testing.T) {
	rows := []DiffRow{
		{Key: "a", Values: []Value{IntOf(1)}},
		{Key: "b", Values: []Value{IntOf(2)}},
	}
	sorted := Apply(rows, 7, true)
	assert.Equal(t, "a", sorted[0].Key)
	assert.Equal(t, "b", sorted[1].Key)
}
