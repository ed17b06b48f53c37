package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
)

// DefaultConnectTimeout bounds a dial attempt.
const DefaultConnectTimeout = 10 * time.Second

// PgxDialer opens connections with pgx.
type PgxDialer struct {
	ConnectTimeout time.Duration
	Log            logger.Logger
}

// NewPgxDialer returns a dialer with the default connect timeout.
func NewPgxDialer(log logger.Logger) *PgxDialer {
	if log == nil {
		log = logger.Noop()
	}
	return &PgxDialer{ConnectTimeout: DefaultConnectTimeout, Log: log}
}

// Dial connects and reads the server version.
func (d *PgxDialer) Dial(ctx context.Context, p Params) (Conn, error) {
	cfg, err := pgx.ParseConfig(p.ConnString())
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid connection parameters for "+p.String(),
			"Check host, port, user and dbname")
	}
	if p.Password != "" {
		cfg.Password = p.Password
	}
	if d.ConnectTimeout > 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	cfg.RuntimeParams["application_name"] = "pgcenter"

	d.Log.Debug("dialing %s", p)
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConn,
			"Can't connect to "+p.String(),
			"Check the server is running and accepting connections, and that the credentials are right")
	}

	c := &pgxConn{conn: conn, params: p}
	res, err := c.Query(ctx, "SHOW server_version_num")
	if err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}
	if len(res.Rows) == 1 && len(res.Rows[0]) == 1 {
		if s, ok := res.Rows[0][0].(string); ok {
			c.version, _ = strconv.Atoi(strings.TrimSpace(s))
		}
	}
	d.Log.Debug("connected to %s, server_version_num %d", p, c.version)
	return c, nil
}

type pgxConn struct {
	conn    *pgx.Conn
	params  Params
	version int
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.classify(err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	res := &Result{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		res.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, c.classify(err)
		}
		for i, v := range vals {
			vals[i] = Normalize(v)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, c.classify(err)
	}
	return res, nil
}

func (c *pgxConn) ServerVersion() int { return c.version }
func (c *pgxConn) Params() Params     { return c.params }
func (c *pgxConn) IsLocal() bool      { return c.params.IsLocal() }

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

func (c *pgxConn) classify(err error) error {
	return Classify(err, c.conn.IsClosed())
}

// Classify maps a driver error to a coded error. Server-reported errors are
// QUERY errors; a lost connection is a CONN error so the screen re-dials.
func Classify(err error, closed bool) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return errors.WrapWithCode(err, errors.ErrQuery,
			fmt.Sprintf("Query failed (SQLSTATE %s)", pgErr.Code),
			pgErr.Hint)
	}
	if closed {
		return errors.WrapWithCode(err, errors.ErrConn,
			"Connection lost",
			"The screen reconnects on the next refresh")
	}
	if pgconn.Timeout(err) {
		return errors.WrapWithCode(err, errors.ErrQuery,
			"Query timed out",
			"Increase the refresh interval or the signal timeout")
	}
	return errors.WrapWithCode(err, errors.ErrQuery, "Query failed", "")
}

// Normalize converts pgx values into the small set of types Result promises.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		if x.Exp >= 0 && !x.NaN {
			if i, err := x.Int64Value(); err == nil && i.Valid {
				return i.Int64
			}
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Interval:
		if !x.Valid {
			return nil
		}
		return FormatInterval(x)
	case netip.Prefix:
		if x.IsSingleIP() {
			return x.Addr().String()
		}
		return x.String()
	case netip.Addr:
		return x.String()
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case time.Duration:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FormatInterval renders an interval the way the server prints it: days
// first, then HH:MM:SS with seconds truncated.
func FormatInterval(iv pgtype.Interval) string {
	var b strings.Builder
	if iv.Months != 0 {
		fmt.Fprintf(&b, "%d mons ", iv.Months)
	}
	if iv.Days != 0 {
		fmt.Fprintf(&b, "%d days ", iv.Days)
	}
	us := iv.Microseconds
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	secs := us / 1_000_000
	fmt.Fprintf(&b, "%s%02d:%02d:%02d", sign, secs/3600, (secs/60)%60, secs%60)
	return b.String()
}
