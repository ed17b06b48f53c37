package stat

import (
	"time"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// DefaultInterval is the refresh interval used when no elapsed time is known.
const DefaultInterval = time.Second

// DiffRow is a row after rate normalization.
type DiffRow struct {
	Key    string
	Values []Value
	// Fresh rows had no single previous row with the same key and carry raw values.
	Fresh bool
	// Reset is set when a counter went backwards, or had no previous value,
	// and its rate was shown as zero.
	Reset bool
}

// Engine computes per-second rates between consecutive snapshots.
type Engine struct {
	Interval time.Duration
}

// Diff matches curr rows against prev by key and rate-normalizes the
// context's diffed columns over elapsedSeconds. Rows present only in prev are
// dropped and the order of curr is kept. A nil prev marks every row fresh, as
// does a key that appears more than once in either snapshot.
func (e Engine) Diff(prev, curr *Snapshot, c Context, elapsedSeconds float64) ([]DiffRow, error) {
	if curr == nil {
		return nil, nil
	}
	width := len(curr.Columns)
	if err := checkWidth(curr, width, c.Name); err != nil {
		return nil, err
	}

	out := make([]DiffRow, 0, len(curr.Rows))
	if prev == nil {
		for _, r := range curr.Rows {
			out = append(out, DiffRow{Key: r.Key, Values: r.Values, Fresh: true})
		}
		return out, nil
	}

	if len(prev.Columns) != width {
		return nil, columnMismatch(c.Name, len(prev.Columns), width)
	}
	if err := checkWidth(prev, width, c.Name); err != nil {
		return nil, err
	}

	if elapsedSeconds <= 0 {
		iv := e.Interval
		if iv <= 0 {
			iv = DefaultInterval
		}
		elapsedSeconds = iv.Seconds()
	}

	byKey := make(map[string]Row, len(prev.Rows))
	ambiguous := make(map[string]bool)
	for _, r := range prev.Rows {
		if _, dup := byKey[r.Key]; dup {
			ambiguous[r.Key] = true
		}
		byKey[r.Key] = r
	}
	seen := make(map[string]bool, len(curr.Rows))
	for _, r := range curr.Rows {
		if seen[r.Key] {
			ambiguous[r.Key] = true
		}
		seen[r.Key] = true
	}

	for _, r := range curr.Rows {
		p, ok := byKey[r.Key]
		if !ok || ambiguous[r.Key] {
			out = append(out, DiffRow{Key: r.Key, Values: r.Values, Fresh: true})
			continue
		}

		row := DiffRow{Key: r.Key, Values: make([]Value, width)}
		for i, v := range r.Values {
			if !c.Diffed(i) || v.Kind != NumberValue {
				row.Values[i] = v
				continue
			}
			pv := p.Values[i]
			if pv.Kind != NumberValue {
				// A counter that just started reporting has no rate yet.
				row.Values[i] = Value{Kind: NumberValue, Integral: v.Integral}
				row.Reset = true
				continue
			}
			rate := (v.Num - pv.Num) / elapsedSeconds
			if rate < 0 {
				rate = 0
				row.Reset = true
			}
			row.Values[i] = Value{Kind: NumberValue, Num: rate, Integral: v.Integral && pv.Integral}
		}
		out = append(out, row)
	}
	return out, nil
}

func checkWidth(s *Snapshot, width int, name string) error {
	for _, r := range s.Rows {
		if len(r.Values) != width {
			return errors.New(errors.ErrDiff,
				"Row width does not match header for "+name,
				"The previous snapshot is discarded and the next refresh starts a new baseline")
		}
	}
	return nil
}
