// Package postgres defines the connection surface the dashboard needs and
// implements it on top of pgx.
package postgres

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Connection defaults.
const (
	DefaultHost = "/tmp"
	DefaultPort = 5432
	DefaultUser = "postgres"
)

// Params are the connection parameters of one screen.
type Params struct {
	Host     string
	Port     int
	User     string
	DBName   string
	Password string
}

// WithDefaults fills empty fields with the connection defaults. An empty
// database name falls back to the user name.
func (p Params) WithDefaults() Params {
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.User == "" {
		p.User = DefaultUser
	}
	if p.DBName == "" {
		p.DBName = p.User
	}
	return p
}

// ConnString renders keyword/value connection settings. Empty fields are
// omitted so libpq environment variables can fill them.
func (p Params) ConnString() string {
	var parts []string
	add := func(k, v string) {
		if v == "" {
			return
		}
		parts = append(parts, k+"="+quoteConnValue(v))
	}
	add("host", p.Host)
	if p.Port != 0 {
		add("port", strconv.Itoa(p.Port))
	}
	add("user", p.User)
	add("dbname", p.DBName)
	return strings.Join(parts, " ")
}

// String identifies the connection without the password.
func (p Params) String() string {
	host := p.Host
	if p.Port != 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}
	return fmt.Sprintf("%s@%s/%s", p.User, host, p.DBName)
}

// IsLocal reports whether the server runs on this machine: a unix socket
// directory or a loopback address.
func (p Params) IsLocal() bool {
	h := p.Host
	if h == "" || strings.HasPrefix(h, "/") || h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Result is a fully read query result. Values are normalized to nil, string,
// bool, int64 or float64.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Querier runs SQL.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (*Result, error)
}

// Conn is an open server connection.
type Conn interface {
	Querier
	// ServerVersion returns server_version_num, e.g. 160002.
	ServerVersion() int
	Params() Params
	IsLocal() bool
	Close(ctx context.Context) error
}

// FormatVersion renders server_version_num, e.g. 160002 as "16.2" and
// 90624 as "9.6.24".
func FormatVersion(v int) string {
	if v >= 100000 {
		return fmt.Sprintf("%d.%d", v/10000, v%10000)
	}
	return fmt.Sprintf("%d.%d.%d", v/10000, v/100%100, v%100)
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, p Params) (Conn, error)
}
