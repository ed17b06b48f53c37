// Package pgtest provides in-memory postgres.Conn and postgres.Dialer fakes.
package pgtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

// Call records one query.
type Call struct {
	SQL  string
	Args []any
}

type response struct {
	contains string
	result   *postgres.Result
	err      error
}

// FakeConn answers queries from canned responses matched by SQL substring.
// The first matching response wins.
type FakeConn struct {
	Version int
	P       postgres.Params
	Local   bool

	// QueryFunc, when set, is consulted before canned responses.
	QueryFunc func(ctx context.Context, sql string, args []any) (*postgres.Result, error)

	mu        sync.Mutex
	responses []response
	calls     []Call
	closed    bool
}

// NewFakeConn returns a local connection to a server of the given version.
func NewFakeConn(version int) *FakeConn {
	return &FakeConn{
		Version: version,
		P:       postgres.Params{}.WithDefaults(),
		Local:   true,
	}
}

// On registers a response for queries containing substr.
func (f *FakeConn) On(substr string, res *postgres.Result, err error) *FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{contains: substr, result: res, err: err})
	return f
}

// Query implements postgres.Querier.
func (f *FakeConn) Query(ctx context.Context, sql string, args ...any) (*postgres.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{SQL: sql, Args: args})
	closed := f.closed
	responses := f.responses
	fn := f.QueryFunc
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if closed {
		return nil, fmt.Errorf("connection closed")
	}
	if fn != nil {
		return fn(ctx, sql, args)
	}
	for _, r := range responses {
		if strings.Contains(sql, r.contains) {
			return r.result, r.err
		}
	}
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

// Calls returns the recorded queries.
func (f *FakeConn) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsMatching returns recorded queries containing substr.
func (f *FakeConn) CallsMatching(substr string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if strings.Contains(c.SQL, substr) {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeConn) ServerVersion() int      { return f.Version }
func (f *FakeConn) Params() postgres.Params { return f.P }
func (f *FakeConn) IsLocal() bool           { return f.Local }

// Close implements postgres.Conn.
func (f *FakeConn) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeDialer hands out Conn, or Err when set.
type FakeDialer struct {
	Conn postgres.Conn
	Err  error

	mu    sync.Mutex
	dials []postgres.Params
}

// Dial implements postgres.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, p postgres.Params) (postgres.Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, p)
	err := d.Err
	conn := d.Conn
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SetErr changes the dial outcome.
func (d *FakeDialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

// Dials returns the params of every dial attempt.
func (d *FakeDialer) Dials() []postgres.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]postgres.Params, len(d.dials))
	copy(out, d.dials)
	return out
}

// Rows builds a Result.
func Rows(columns []string, rows ...[]any) *postgres.Result {
	return &postgres.Result{Columns: columns, Rows: rows}
}
