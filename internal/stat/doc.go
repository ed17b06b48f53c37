// Package stat holds the statistics contexts shown by the dashboard and the
// pure logic applied to their results.
//
// A Context describes one statistics view: the query that produces it, its
// columns, which columns identify a row, which columns are cumulative
// counters, and the range of columns the operator may sort by. Contexts are
// built once by NewCatalog and shared read-only by every screen.
//
// Each refresh produces a Snapshot. The Engine turns two consecutive
// snapshots of the same context into per-second rates, matching rows by key:
//
//	prev (t0)          curr (t1, 5s later)     result
//	db1 commit=100     db1 commit=150          db1 commit=10/s
//	                   db2 commit=5            db2 commit=5 (fresh)
//
// OrderState tracks the sort column and direction of a screen and Apply sorts
// diffed rows with a stable sort.
package stat
