// Package signal cancels or terminates server backends, one at a time or by
// session state and age.
package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// DefaultTimeout bounds each signal request.
const DefaultTimeout = 5 * time.Second

// Action is the signal sent to a backend.
type Action int

const (
	Cancel Action = iota
	Terminate
)

func (a Action) String() string {
	if a == Terminate {
		return "terminate"
	}
	return "cancel"
}

func (a Action) function() string {
	if a == Terminate {
		return "pg_terminate_backend"
	}
	return "pg_cancel_backend"
}

// ParseAction maps "cancel" or "terminate" to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancel":
		return Cancel, nil
	case "terminate":
		return Terminate, nil
	}
	return 0, errors.New(errors.ErrSignal, fmt.Sprintf("Unknown signal %q", s), "Use cancel or terminate")
}

// Result is the outcome for one backend.
type Result struct {
	PID    int
	Action Action
	Err    error
}

// OK reports whether the server accepted the signal.
func (r Result) OK() bool { return r.Err == nil }

// Report is the outcome of a group signal.
type Report struct {
	Action  Action
	Groups  GroupSet
	MinAge  string
	Results []Result
}

// Succeeded counts backends that were signalled.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Summary renders the report on one line.
func (r Report) Summary() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("%s: no %s backends older than %s", r.Action, r.Groups.Describe(), r.MinAge)
	}
	return fmt.Sprintf("%s: %d of %d backends signalled (%s, older than %s)",
		r.Action, r.Succeeded(), len(r.Results), r.Groups.Describe(), r.MinAge)
}

// Dispatcher sends signals over one connection.
type Dispatcher struct {
	conn    postgres.Conn
	timeout time.Duration
	log     logger.Logger
}

// NewDispatcher creates a dispatcher. A non-positive timeout uses DefaultTimeout.
func NewDispatcher(conn postgres.Conn, timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Dispatcher{conn: conn, timeout: timeout, log: log}
}

// Signal sends action to one backend.
func (d *Dispatcher) Signal(ctx context.Context, action Action, pid int) Result {
	res := Result{PID: pid, Action: action}
	if pid <= 0 {
		res.Err = errors.New(errors.ErrSignal, fmt.Sprintf("Invalid pid %d", pid), "")
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.conn.Query(ctx, "SELECT "+action.function()+"($1)", pid)
	if err != nil {
		res.Err = errors.WrapWithCode(err, errors.ErrSignal,
			fmt.Sprintf("Failed to %s backend %d", action, pid), "")
		d.log.Warn("%s pid %d: %v", action, pid, errors.Short(err))
		return res
	}
	if !signalled(out) {
		res.Err = errors.New(errors.ErrSignal,
			fmt.Sprintf("Backend %d was not signalled", pid),
			"The process may have exited, or the role lacks permission to signal it")
		return res
	}
	d.log.Info("%s pid %d", action, pid)
	return res
}

func signalled(res *postgres.Result) bool {
	if res == nil || len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return false
	}
	ok, _ := res.Rows[0][0].(bool)
	return ok
}

// SignalGroup sends action to every backend in one of set's states whose
// transaction or query is older than minAge. The set is validated before any
// query runs. A failure on one backend is recorded in the report and the
// remaining backends are still signalled.
func (d *Dispatcher) SignalGroup(ctx context.Context, action Action, set GroupSet, minAge string) (Report, error) {
	if minAge == "" {
		minAge = stat.DefaultMinAge
	}
	report := Report{Action: action, Groups: set, MinAge: minAge}

	pred, err := BuildGroupPredicate(set, d.conn.ServerVersion())
	if err != nil {
		return report, err
	}
	if err := stat.ValidateInterval(minAge); err != nil {
		return report, err
	}

	pids, err := d.targets(ctx, pred, minAge)
	if err != nil {
		return report, err
	}
	d.log.Debug("%s group %s older than %s: %d targets", action, set, minAge, len(pids))

	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, d.Signal(ctx, action, pid))
	}
	return report, nil
}

func (d *Dispatcher) targets(ctx context.Context, pred, minAge string) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.conn.Query(ctx, "SELECT pid FROM pg_stat_activity WHERE "+pred+" ORDER BY pid", minAge)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSignal,
			"Failed to select backends to signal", "")
	}

	pids := make([]int, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		v := stat.ValueOf(row[0])
		if v.Kind != stat.NumberValue {
			continue
		}
		pids = append(pids, int(v.Num))
	}
	return pids, nil
}
