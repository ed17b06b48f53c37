package stat

import (
	"sort"
	"strings"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// ErrInvalidOrderKey is returned when a sort column is outside the context's range.
var ErrInvalidOrderKey = errors.New(errors.ErrOrder,
	"Invalid sort column",
	"Use the left and right arrow keys to move between sortable columns")

// ErrFixedOrder is returned when sorting a context whose order the server fixes.
var ErrFixedOrder = errors.New(errors.ErrOrder,
	"This view is sorted by the server",
	"Switch to another statistics view to sort by column")

// OrderState is the sort column and direction of one screen.
type OrderState struct {
	Key  int
	Desc bool
}

// DefaultOrder returns the initial order for a context.
func DefaultOrder(c Context) OrderState {
	if c.Order == nil {
		return OrderState{}
	}
	return OrderState{Key: c.Order.Default, Desc: c.Order.Desc}
}

// SetOrder changes the sort column. It is a no-op for contexts whose order
// is fixed by the server.
func (s *OrderState) SetOrder(c Context, key int) error {
	if c.Order == nil {
		return nil
	}
	if !c.Order.Contains(key) {
		return ErrInvalidOrderKey
	}
	s.Key = key
	return nil
}

// ToggleDirection flips between ascending and descending.
func (s *OrderState) ToggleDirection(c Context) {
	if c.Order == nil {
		return
	}
	s.Desc = !s.Desc
}

// Next moves the sort column one to the right, stopping at the last sortable column.
func (s *OrderState) Next(c Context) {
	if c.Order == nil {
		return
	}
	if s.Key < c.Order.Max {
		s.Key++
	}
	if s.Key < c.Order.Min {
		s.Key = c.Order.Min
	}
}

// Prev moves the sort column one to the left, stopping at the first sortable column.
func (s *OrderState) Prev(c Context) {
	if c.Order == nil {
		return
	}
	if s.Key > c.Order.Min {
		s.Key--
	}
	if s.Key > c.Order.Max {
		s.Key = c.Order.Max
	}
}

// ResetOrder restores the context default, used when the screen switches context.
func (s *OrderState) ResetOrder(c Context) {
	*s = DefaultOrder(c)
}

// Apply returns rows sorted by column key. Numbers compare numerically, text
// lexically and nulls sort last in both directions. Equal rows keep their
// input order.
func Apply(rows []DiffRow, key int, desc bool) []DiffRow {
	out := make([]DiffRow, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := cell(out[i], key), cell(out[j], key)
		if a.IsNull() || b.IsNull() {
			return !a.IsNull() && b.IsNull()
		}
		c := compareValues(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func cell(r DiffRow, key int) Value {
	if key < 0 || key >= len(r.Values) {
		return Null
	}
	return r.Values[key]
}

func compareValues(a, b Value) int {
	if a.Kind == NumberValue && b.Kind == NumberValue {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.String(), b.String())
}
