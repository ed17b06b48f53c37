package stat

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// ContextID identifies one of the statistics contexts.
type ContextID int

const (
	Databases ContextID = iota
	Replication
	Tables
	Indexes
	TablesIO
	TableSizes
	LongActivity
	Functions
	Statements

	contextCount
)

// DefaultContext is the context a new screen starts in.
const DefaultContext = Databases

var contextNames = [...]string{
	Databases:    "databases",
	Replication:  "replication",
	Tables:       "tables",
	Indexes:      "indexes",
	TablesIO:     "tablesio",
	TableSizes:   "sizes",
	LongActivity: "activity",
	Functions:    "functions",
	Statements:   "statements",
}

// String returns the short name used in the settings file and on the command line.
func (id ContextID) String() string {
	if id < 0 || id >= contextCount {
		return fmt.Sprintf("context(%d)", int(id))
	}
	return contextNames[id]
}

// Valid reports whether id names a known context.
func (id ContextID) Valid() bool {
	return id >= 0 && id < contextCount
}

// ParseContextID maps a short name ("tables") or a view name
// ("pg_stat_user_tables") to a context id.
func ParseContextID(name string) (ContextID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for id := ContextID(0); id < contextCount; id++ {
		if n == contextNames[id] || n == catalogSpecs[id].name {
			return id, nil
		}
	}
	return 0, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown statistics context %q", name),
		"Use one of: "+strings.Join(contextNames[:], ", "))
}

// ColumnKind says how a column takes part in diffing.
type ColumnKind int

const (
	// Text columns are labels and never diffed.
	Text ColumnKind = iota
	// Counter columns are cumulative and shown as per-second rates.
	Counter
	// Gauge columns are numeric point-in-time values shown as-is.
	Gauge
)

// Column is one output column of a context query.
type Column struct {
	Name string
	Kind ColumnKind
}

// OrderRange bounds the columns an operator may sort by.
type OrderRange struct {
	Min     int
	Max     int
	Default int
	Desc    bool
}

// Contains reports whether key lies inside the range.
func (r OrderRange) Contains(key int) bool {
	return key >= r.Min && key <= r.Max
}

// Context is the immutable descriptor of one statistics view.
type Context struct {
	ID         ContextID
	Name       string
	Title      string
	Query      QueryTemplate
	Columns    []Column
	KeyColumns []int
	// Order is nil when the server fixes the row order.
	Order *OrderRange
	// DiffColumn, when set, is the only column rate-normalized.
	DiffColumn *int
}

// Orderable reports whether the operator may choose a sort column.
func (c Context) Orderable() bool {
	return c.Order != nil
}

// Diffed reports whether column col is rate-normalized by the diff engine.
func (c Context) Diffed(col int) bool {
	if c.DiffColumn != nil {
		return col == *c.DiffColumn
	}
	if col < 0 || col >= len(c.Columns) {
		return false
	}
	return c.Columns[col].Kind == Counter
}

// ColumnNames returns the header labels.
func (c Context) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Catalog holds one Context per ContextID.
type Catalog struct {
	contexts [contextCount]Context
}

// NewCatalog builds the catalog of all contexts.
func NewCatalog() *Catalog {
	cat := &Catalog{}
	for id := ContextID(0); id < contextCount; id++ {
		s := catalogSpecs[id]
		c := Context{
			ID:         id,
			Name:       s.name,
			Title:      s.title,
			Query:      s.query,
			Columns:    s.columns,
			KeyColumns: s.keys,
			Order:      s.order,
		}
		if s.diffColumn >= 0 {
			col := s.diffColumn
			c.DiffColumn = &col
		}
		cat.contexts[id] = c
	}
	return cat
}

// Resolve returns the context for id. An unknown id is a programming error.
func (cat *Catalog) Resolve(id ContextID) Context {
	if !id.Valid() {
		panic(fmt.Sprintf("stat: unknown context id %d", int(id)))
	}
	return cat.contexts[id]
}

// All returns every context in id order.
func (cat *Catalog) All() []Context {
	out := make([]Context, 0, contextCount)
	for id := ContextID(0); id < contextCount; id++ {
		out = append(out, cat.contexts[id])
	}
	return out
}

type contextSpec struct {
	name       string
	title      string
	query      QueryTemplate
	columns    []Column
	keys       []int
	order      *OrderRange
	diffColumn int
}

func text(name string) Column    { return Column{Name: name, Kind: Text} }
func counter(name string) Column { return Column{Name: name, Kind: Counter} }
func gauge(name string) Column   { return Column{Name: name, Kind: Gauge} }

func counters(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = counter(n)
	}
	return cols
}

func cols(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var catalogSpecs = [contextCount]contextSpec{
	Databases: {
		name:  "pg_stat_database",
		title: "databases",
		query: databaseQuery,
		columns: cols([]Column{text("datname")}, counters(
			"commit", "rollback", "reads", "hits", "returned", "fetched",
			"inserts", "updates", "deletes", "conflicts", "tmp_files",
			"tmp_bytes", "read_t", "write_t",
		)),
		keys:       []int{0},
		order:      &OrderRange{Min: 1, Max: 14, Default: 1, Desc: true},
		diffColumn: -1,
	},
	// Standbys on a unix socket share a NULL client and often the default
	// application name, so the walsender pid is the key.
	Replication: {
		name:  "pg_stat_replication",
		title: "replication",
		query: replicationQuery,
		columns: cols(
			[]Column{text("client"), text("name"), text("state"), text("mode")},
			counters("sent KB/s", "write KB/s", "flush KB/s", "replay KB/s", "lag KB/s"),
			[]Column{gauge("pid")},
		),
		keys:       []int{9},
		order:      &OrderRange{Min: 4, Max: 7, Default: 4, Desc: true},
		diffColumn: -1,
	},
	Tables: {
		name:  "pg_stat_user_tables",
		title: "relation row counts",
		query: tablesQuery,
		columns: cols(
			[]Column{text("relation")},
			counters("seq_scan", "seq_tup_read", "idx_scan", "idx_tup_fetch",
				"inserts", "updates", "deletes", "hot_updates", "live", "dead"),
		),
		keys:       []int{0},
		order:      &OrderRange{Min: 1, Max: 10, Default: 1, Desc: true},
		diffColumn: -1,
	},
	Indexes: {
		name:  "pg_stat_user_indexes",
		title: "indexes",
		query: indexesQuery,
		columns: cols(
			[]Column{text("relation"), text("index")},
			counters("idx_scan", "idx_tup_read", "idx_tup_fetch", "idx_blks_read", "idx_blks_hit"),
		),
		keys:       []int{0, 1},
		order:      &OrderRange{Min: 2, Max: 6, Default: 2, Desc: true},
		diffColumn: -1,
	},
	TablesIO: {
		name:  "pg_statio_user_tables",
		title: "tables io",
		query: tablesIOQuery,
		columns: cols([]Column{text("relation")}, counters(
			"heap_blks_read", "heap_blks_hit", "idx_blks_read", "idx_blks_hit",
			"toast_blks_read", "toast_blks_hit", "tidx_blks_read", "tidx_blks_hit",
		)),
		keys:       []int{0},
		order:      &OrderRange{Min: 1, Max: 8, Default: 1, Desc: true},
		diffColumn: -1,
	},
	TableSizes: {
		name:  "pg_tables_size",
		title: "relation sizes",
		query: tableSizesQuery,
		columns: cols(
			[]Column{text("relation")},
			counters("total size, KB/s", "size w/o indexes, KB/s", "indexes, KB/s",
				"total changes, KB/s", "changes w/o indexes, KB/s", "changes indexes, KB/s"),
		),
		keys:       []int{0},
		order:      &OrderRange{Min: 4, Max: 6, Default: 4, Desc: true},
		diffColumn: -1,
	},
	LongActivity: {
		name:  "pg_stat_activity_long",
		title: "long activity",
		query: longActivityQuery,
		columns: []Column{
			gauge("pid"), text("cl_addr"), gauge("cl_port"), text("datname"),
			text("usename"), text("state"), text("waiting"), text("txn_age"),
			text("query_age"), text("change_age"), text("query"),
		},
		keys:       []int{0},
		diffColumn: -1,
	},
	Functions: {
		name:  "pg_stat_user_functions",
		title: "functions",
		query: functionsQuery,
		columns: []Column{
			gauge("funcid"), text("function"), gauge("total_calls"), counter("calls/s"),
			text("total_time"), text("self_time"), gauge("avg_time (ms)"), gauge("avg_self_time (ms)"),
		},
		keys:       []int{0},
		order:      &OrderRange{Min: 2, Max: 7, Default: 2, Desc: true},
		diffColumn: 3,
	},
	Statements: {
		name:  "pg_stat_statements",
		title: "statements",
		query: statementsQuery,
		columns: []Column{
			text("user"), text("database"), gauge("calls"), counter("calls/s"),
			gauge("total_time"), gauge("disk_read_time"), gauge("disk_write_time"),
			gauge("cpu_time"), gauge("rows"), text("query"),
		},
		keys:       []int{0, 1, 9},
		order:      &OrderRange{Min: 2, Max: 8, Default: 2, Desc: true},
		diffColumn: 3,
	},
}
