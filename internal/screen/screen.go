// Package screen holds the monitoring state of each dashboard pane: one
// connection, one active context, its sort order, filters and the two
// snapshots the diff engine needs.
package screen

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/pgconfig"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/signal"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// Refresh cadence.
const (
	DefaultInterval = time.Second
	IntervalStep    = 200 * time.Millisecond
	MinInterval     = 200 * time.Millisecond
)

// Timeouts applied to screen I/O.
const (
	DefaultQueryTimeout = 10 * time.Second
	DefaultCloseTimeout = 3 * time.Second
)

// Table is the display-ready result of one refresh.
type Table struct {
	Slot          int
	Context       stat.Context
	Params        postgres.Params
	ServerVersion int
	Columns       []string
	Rows          []stat.DiffRow
	Order         stat.OrderState
	Summary       *stat.ActivitySummary
	At            time.Time
	Interval      time.Duration
	// Err is the error of the refresh that produced this table, if any.
	Err error
}

// Options describe a screen when it is opened.
type Options struct {
	Params  postgres.Params
	Context stat.ContextID
	MinAge  string
}

// Config carries the collaborators shared by all screens.
type Config struct {
	Dialer        postgres.Dialer
	Catalog       *stat.Catalog
	Interval      time.Duration
	QueryTimeout  time.Duration
	SignalTimeout time.Duration
	CloseTimeout  time.Duration
	LogDir        string
	Log           logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Catalog == nil {
		c.Catalog = stat.NewCatalog()
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.SignalTimeout <= 0 {
		c.SignalTimeout = signal.DefaultTimeout
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.Log == nil {
		c.Log = logger.Noop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Screen is one monitoring pane. All methods are safe for concurrent use.
//
// connMu serializes use of the connection, so a refresh holds it across
// query, diff and snapshot swap. mu guards the fields below it and is never
// held during I/O.
type Screen struct {
	slot   int
	params postgres.Params
	cfg    Config

	connMu sync.Mutex

	mu       sync.Mutex
	conn     postgres.Conn
	inUse    bool
	context  stat.Context
	order    stat.OrderState
	minAge   string
	groups   signal.GroupSet
	interval time.Duration
	prev     *stat.Snapshot
	last     Table
	lastErr  error
	gen      uint64
	recorder *Recorder
	kick     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScreen creates a disconnected screen. The first Refresh dials.
func NewScreen(slot int, opts Options, cfg Config) *Screen {
	cfg = cfg.withDefaults()
	id := opts.Context
	if !id.Valid() {
		id = stat.DefaultContext
	}
	minAge := opts.MinAge
	if minAge == "" {
		minAge = stat.DefaultMinAge
	}
	c := cfg.Catalog.Resolve(id)
	return &Screen{
		slot:     slot,
		params:   opts.Params.WithDefaults(),
		cfg:      cfg,
		context:  c,
		order:    stat.DefaultOrder(c),
		minAge:   minAge,
		groups:   signal.NewGroupSet(signal.IdleInXact),
		interval: cfg.Interval,
		kick:     make(chan struct{}, 1),
	}
}

// Slot returns the screen number, 1..MaxScreens.
func (s *Screen) Slot() int { return s.slot }

// Params returns the connection parameters.
func (s *Screen) Params() postgres.Params { return s.params }

// Context returns the active context.
func (s *Screen) Context() stat.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Order returns the current sort state.
func (s *Screen) Order() stat.OrderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// MinAge returns the age filter.
func (s *Screen) MinAge() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minAge
}

// Groups returns the session groups used by group signals.
func (s *Screen) Groups() signal.GroupSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}

// Interval returns the refresh interval.
func (s *Screen) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Busy reports whether a statistics query is in flight.
func (s *Screen) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Connected reports whether the screen holds an open connection.
func (s *Screen) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Last returns the most recent table.
func (s *Screen) Last() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Err returns the error of the most recent refresh.
func (s *Screen) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetContext switches the active context. The sort order goes back to the
// new context's default and the diff baseline is dropped.
func (s *Screen) SetContext(id stat.ContextID) error {
	if !id.Valid() {
		return errors.New(errors.ErrConfig, fmt.Sprintf("Unknown context %d", int(id)), "")
	}
	s.mu.Lock()
	s.context = s.cfg.Catalog.Resolve(id)
	s.order.ResetOrder(s.context)
	s.prev = nil
	s.last = Table{Slot: s.slot, Context: s.context, Params: s.params, Order: s.order}
	s.gen++
	s.mu.Unlock()
	s.Kick()
	return nil
}

// SetOrder sorts by column key. Keys outside the context's range are rejected.
func (s *Screen) SetOrder(key int) error {
	s.mu.Lock()
	err := s.order.SetOrder(s.context, key)
	s.mu.Unlock()
	if err == nil {
		s.Kick()
	}
	return err
}

// NextOrder moves the sort column right. Past the last sortable column the
// order is unchanged and stat.ErrInvalidOrderKey is returned.
func (s *Screen) NextOrder() error {
	return s.stepOrder((*stat.OrderState).Next)
}

// PrevOrder moves the sort column left, like NextOrder.
func (s *Screen) PrevOrder() error {
	return s.stepOrder((*stat.OrderState).Prev)
}

func (s *Screen) stepOrder(step func(*stat.OrderState, stat.Context)) error {
	s.mu.Lock()
	c, before := s.context, s.order
	step(&s.order, c)
	moved := s.order != before
	s.mu.Unlock()

	switch {
	case !c.Orderable():
		return stat.ErrFixedOrder
	case !moved:
		return stat.ErrInvalidOrderKey
	}
	s.Kick()
	return nil
}

// ToggleDirection flips the sort direction.
func (s *Screen) ToggleDirection() {
	s.mu.Lock()
	s.order.ToggleDirection(s.context)
	s.mu.Unlock()
	s.Kick()
}

// SetMinAge changes the age filter used by long activity and group signals.
func (s *Screen) SetMinAge(age string) error {
	if err := stat.ValidateInterval(age); err != nil {
		return err
	}
	s.mu.Lock()
	s.minAge = age
	s.mu.Unlock()
	s.Kick()
	return nil
}

// SetGroups replaces the session groups used by group signals.
func (s *Screen) SetGroups(set signal.GroupSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = set
}

// ToggleGroup flips one session group.
func (s *Screen) ToggleGroup(g signal.Group) signal.GroupSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = s.groups.Toggle(g)
	return s.groups
}

// SetInterval changes the refresh interval, bounded below by MinInterval.
// A running screen picks it up at the next tick.
func (s *Screen) SetInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		d = MinInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	return d
}

// Kick asks a running screen to refresh now.
func (s *Screen) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Refresh runs the active context query, diffs it against the previous
// snapshot and returns the sorted table. Errors are also recorded on the
// returned table.
func (s *Screen) Refresh(ctx context.Context) (Table, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.mu.Lock()
	c, order, minAge, gen, prev, interval := s.context, s.order, s.minAge, s.gen, s.prev, s.interval
	s.mu.Unlock()

	table := Table{
		Slot:     s.slot,
		Context:  c,
		Params:   s.params,
		Columns:  c.ColumnNames(),
		Order:    order,
		Interval: interval,
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	conn, err := s.connect(ctx)
	if err != nil {
		return s.fail(gen, table, err)
	}
	table.ServerVersion = conn.ServerVersion()

	sql, args, err := c.Query.Build(stat.QueryParams{
		ServerVersion: conn.ServerVersion(),
		MinAge:        minAge,
		Range:         c.Order,
		OrderKey:      order.Key,
		Desc:          order.Desc,
	})
	if err != nil {
		return s.fail(gen, table, err)
	}

	s.setInUse(true)
	res, err := conn.Query(ctx, sql, args...)
	s.setInUse(false)
	if err != nil {
		if errors.IsCode(err, errors.ErrConn) {
			s.disconnect(conn)
		}
		return s.fail(gen, table, err)
	}

	table.At = s.cfg.Now()
	curr, err := stat.NewSnapshot(c, res, table.At)
	if err != nil {
		s.resetBaseline(gen)
		return s.fail(gen, table, err)
	}

	var elapsed float64
	if prev != nil {
		elapsed = curr.At.Sub(prev.At).Seconds()
	}
	engine := stat.Engine{Interval: interval}
	rows, err := engine.Diff(prev, curr, c, elapsed)
	if err != nil {
		s.cfg.Log.Warn("screen %d: %s, starting a new baseline", s.slot, errors.Short(err))
		rows, _ = engine.Diff(nil, curr, c, 0)
	}
	if c.Orderable() {
		rows = stat.Apply(rows, order.Key, order.Desc)
	}
	table.Rows = rows
	table.Summary = s.summary(ctx, conn)

	s.mu.Lock()
	if gen != s.gen {
		// The context changed while the query ran.
		last := s.last
		s.mu.Unlock()
		return last, nil
	}
	s.prev = curr
	s.last = table
	s.lastErr = nil
	rec := s.recorder
	s.mu.Unlock()

	if rec != nil {
		if err := rec.Write(table); err != nil {
			s.cfg.Log.Warn("screen %d: %s", s.slot, errors.Short(err))
		}
	}
	return table, nil
}

func (s *Screen) summary(ctx context.Context, conn postgres.Conn) *stat.ActivitySummary {
	res, err := conn.Query(ctx, stat.ActivitySummaryQuery(conn.ServerVersion()))
	if err != nil {
		s.cfg.Log.Debug("screen %d: activity summary: %s", s.slot, errors.Short(err))
		return nil
	}
	sum, err := stat.ParseActivitySummary(res)
	if err != nil {
		s.cfg.Log.Debug("screen %d: activity summary: %v", s.slot, err)
		return nil
	}
	return &sum
}

// fail records err on the screen. The same error is logged once, not on
// every tick.
func (s *Screen) fail(gen uint64, table Table, err error) (Table, error) {
	table.Err = err
	table.At = s.cfg.Now()

	s.mu.Lock()
	repeated := s.lastErr != nil && errors.Short(s.lastErr) == errors.Short(err)
	if gen == s.gen {
		s.last = table
		s.lastErr = err
	}
	s.mu.Unlock()

	if !repeated {
		s.cfg.Log.Warn("screen %d (%s): %s", s.slot, s.params, errors.Short(err))
	}
	return table, err
}

func (s *Screen) resetBaseline(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.prev = nil
	}
}

func (s *Screen) setInUse(v bool) {
	s.mu.Lock()
	s.inUse = v
	s.mu.Unlock()
}

// connect returns the open connection, dialing if there is none. Callers
// hold connMu.
func (s *Screen) connect(ctx context.Context) (postgres.Conn, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	conn, err := s.cfg.Dialer.Dial(ctx, s.params)
	if err != nil {
		if !errors.IsCode(err, errors.ErrConn) {
			err = errors.WrapWithCode(err, errors.ErrConn,
				"Can't connect to "+s.params.String(),
				"Check that the server is running and accepts connections")
		}
		return nil, err
	}
	s.cfg.Log.Info("screen %d connected to %s (server %d)", s.slot, s.params, conn.ServerVersion())

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return conn, nil
}

// disconnect drops a broken connection. The next refresh dials again and
// starts a new baseline.
func (s *Screen) disconnect(conn postgres.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.prev = nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CloseTimeout)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		s.cfg.Log.Debug("screen %d: close: %v", s.slot, err)
	}
}

// Connect dials unless the screen is already connected.
func (s *Screen) Connect(ctx context.Context) error {
	return s.withConn(ctx, func(postgres.Conn) error { return nil })
}

func (s *Screen) withConn(ctx context.Context, fn func(postgres.Conn) error) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return fn(conn)
}

// DispatchSignal cancels or terminates one backend.
func (s *Screen) DispatchSignal(ctx context.Context, action signal.Action, pid int) signal.Result {
	var res signal.Result
	err := s.withConn(ctx, func(conn postgres.Conn) error {
		res = signal.NewDispatcher(conn, s.cfg.SignalTimeout, s.cfg.Log).Signal(ctx, action, pid)
		return nil
	})
	if err != nil {
		return signal.Result{PID: pid, Action: action, Err: err}
	}
	s.Kick()
	return res
}

// DispatchGroupSignal signals every backend in the screen's session groups
// that is older than the screen's age filter.
func (s *Screen) DispatchGroupSignal(ctx context.Context, action signal.Action) (signal.Report, error) {
	s.mu.Lock()
	set, minAge := s.groups, s.minAge
	s.mu.Unlock()

	if err := set.Validate(); err != nil {
		return signal.Report{Action: action, Groups: set, MinAge: minAge}, err
	}

	var report signal.Report
	err := s.withConn(ctx, func(conn postgres.Conn) error {
		var err error
		report, err = signal.NewDispatcher(conn, s.cfg.SignalTimeout, s.cfg.Log).SignalGroup(ctx, action, set, minAge)
		return err
	})
	if err == nil {
		s.Kick()
	}
	return report, err
}

// Locate returns the path of a server configuration file.
func (s *Screen) Locate(ctx context.Context, name string) (string, error) {
	var path string
	err := s.withConn(ctx, func(conn postgres.Conn) error {
		var err error
		path, err = pgconfig.Locate(ctx, conn, name)
		return err
	})
	return path, err
}

// EditCommand returns the editor command for a configuration file.
func (s *Screen) EditCommand(ctx context.Context, name string) (*exec.Cmd, string, error) {
	var (
		cmd  *exec.Cmd
		path string
	)
	err := s.withConn(ctx, func(conn postgres.Conn) error {
		var err error
		cmd, path, err = pgconfig.EditCommand(ctx, conn, name)
		return err
	})
	return cmd, path, err
}

// Settings lists the server settings.
func (s *Screen) Settings(ctx context.Context) ([]pgconfig.Setting, error) {
	var out []pgconfig.Setting
	err := s.withConn(ctx, func(conn postgres.Conn) error {
		var err error
		out, err = pgconfig.Settings(ctx, conn)
		return err
	})
	return out, err
}

// Reload asks the server to re-read its configuration.
func (s *Screen) Reload(ctx context.Context) error {
	return s.withConn(ctx, func(conn postgres.Conn) error {
		return pgconfig.Reload(ctx, conn)
	})
}

// Logging reports whether refreshed tables are being written to a file.
func (s *Screen) Logging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder != nil
}

// ToggleLogging starts or stops the screen log. It returns the log path when
// logging was started.
func (s *Screen) ToggleLogging() (string, error) {
	s.mu.Lock()
	rec := s.recorder
	s.recorder = nil
	s.mu.Unlock()

	if rec != nil {
		return "", rec.Close()
	}

	label := s.params.User + "@" + s.params.DBName
	rec, err := NewRecorder(s.cfg.LogDir, s.slot, label, s.cfg.Now())
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.recorder = rec
	s.mu.Unlock()
	s.cfg.Log.Info("screen %d: logging to %s", s.slot, rec.Path())
	return rec.Path(), nil
}

// Run refreshes on the screen's interval and sends each table to out until
// ctx is done. A disconnected screen retries at the next tick.
func (s *Screen) Run(ctx context.Context, out chan<- Table) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		table, _ := s.Refresh(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case out <- table:
		case <-ctx.Done():
			return
		}
		timer.Reset(s.Interval())
	}
}

// start runs the screen in its own goroutine until Close.
func (s *Screen) start(parent context.Context, out chan<- Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		s.Run(ctx, out)
	}()
}

// Close stops the refresh loop, which cancels any in-flight query, and
// closes the connection. Each step waits at most Config.CloseTimeout. A
// connection still held by a query after that is left open.
func (s *Screen) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	timeout := s.cfg.CloseTimeout
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(timeout):
			s.cfg.Log.Warn("screen %d: refresh did not stop within %s", s.slot, timeout)
		}
	}

	locked := s.lockConn(timeout)
	if locked {
		defer s.connMu.Unlock()
	}

	s.mu.Lock()
	conn, rec := s.conn, s.recorder
	s.conn, s.recorder, s.prev = nil, nil, nil
	s.mu.Unlock()

	var firstErr error
	if rec != nil {
		firstErr = rec.Close()
	}
	if conn == nil {
		return firstErr
	}
	if !locked {
		s.cfg.Log.Warn("screen %d: connection still in use after %s, leaving it for the server to drop", s.slot, timeout)
		return firstErr
	}
	ctx, cancelClose := context.WithTimeout(context.Background(), timeout)
	defer cancelClose()
	if err := conn.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// lockConn acquires connMu, giving up after timeout.
func (s *Screen) lockConn(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !s.connMu.TryLock() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}
