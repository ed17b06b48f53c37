package stat

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

// ValueKind tags a Value.
type ValueKind int

const (
	NullValue ValueKind = iota
	TextValue
	NumberValue
)

// Value is one table cell.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	// Integral numbers display without a fraction.
	Integral bool
}

// Null is the empty cell.
var Null = Value{Kind: NullValue}

// TextOf builds a text cell.
func TextOf(s string) Value { return Value{Kind: TextValue, Str: s} }

// IntOf builds an integral number cell.
func IntOf(n int64) Value { return Value{Kind: NumberValue, Num: float64(n), Integral: true} }

// FloatOf builds a fractional number cell.
func FloatOf(f float64) Value { return Value{Kind: NumberValue, Num: f} }

// ValueOf converts a driver value into a cell.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case int:
		return IntOf(int64(x))
	case int16:
		return IntOf(int64(x))
	case int32:
		return IntOf(int64(x))
	case int64:
		return IntOf(x)
	case uint32:
		return IntOf(int64(x))
	case uint64:
		return IntOf(int64(x))
	case float32:
		return FloatOf(float64(x))
	case float64:
		return FloatOf(x)
	case bool:
		return TextOf(strconv.FormatBool(x))
	case string:
		return TextOf(x)
	case []byte:
		return TextOf(string(x))
	case fmt.Stringer:
		return TextOf(x.String())
	default:
		return TextOf(fmt.Sprint(x))
	}
}

// IsNull reports whether the cell is empty.
func (v Value) IsNull() bool { return v.Kind == NullValue }

// String renders the cell for display and log files.
func (v Value) String() string {
	switch v.Kind {
	case TextValue:
		return v.Str
	case NumberValue:
		if v.Integral && v.Num == math.Trunc(v.Num) {
			return strconv.FormatInt(int64(v.Num), 10)
		}
		return strconv.FormatFloat(v.Num, 'f', 2, 64)
	default:
		return ""
	}
}

// asNumber coerces numeric-looking text, which some drivers return for numeric types.
func (v Value) asNumber() Value {
	if v.Kind != TextValue {
		return v
	}
	s := strings.TrimSpace(v.Str)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntOf(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatOf(f)
	}
	return v
}

// Row is one result row with its identity key.
type Row struct {
	Key    string
	Values []Value
}

// Snapshot is one refresh worth of rows for a context.
type Snapshot struct {
	Context ContextID
	Columns []string
	Rows    []Row
	At      time.Time
}

const keySeparator = "\x1f"

// NewSnapshot builds a snapshot from a query result, rejecting a result
// whose width does not match the context's columns.
func NewSnapshot(c Context, res *postgres.Result, at time.Time) (*Snapshot, error) {
	if res == nil {
		return nil, errors.New(errors.ErrDiff, "Empty query result", "")
	}
	if len(res.Columns) != len(c.Columns) {
		return nil, columnMismatch(c.Name, len(c.Columns), len(res.Columns))
	}

	snap := &Snapshot{
		Context: c.ID,
		Columns: c.ColumnNames(),
		Rows:    make([]Row, 0, len(res.Rows)),
		At:      at,
	}
	for i, raw := range res.Rows {
		if len(raw) != len(c.Columns) {
			return nil, errors.New(errors.ErrDiff,
				fmt.Sprintf("Row %d of %s has %d values, expected %d", i, c.Name, len(raw), len(c.Columns)),
				"")
		}
		vals := make([]Value, len(raw))
		for j, r := range raw {
			v := ValueOf(r)
			if c.Columns[j].Kind != Text {
				v = v.asNumber()
			}
			vals[j] = v
		}
		snap.Rows = append(snap.Rows, Row{Key: rowKey(c.KeyColumns, vals), Values: vals})
	}
	return snap, nil
}

func rowKey(keys []int, vals []Value) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k < len(vals) {
			parts[i] = vals[k].String()
		}
	}
	return strings.Join(parts, keySeparator)
}

func columnMismatch(name string, want, got int) *errors.Error {
	return errors.New(errors.ErrDiff,
		fmt.Sprintf("Column count changed for %s: expected %d, got %d", name, want, got),
		"The previous snapshot is discarded and the next refresh starts a new baseline")
}
