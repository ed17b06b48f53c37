// Package cli implements the pgcenter command-line interface.
//
// The root command opens the statistics dashboard; the remaining commands are
// one-shot operations against a single server:
//
//	pgcenter [top]                          - Statistics dashboard
//	pgcenter signal cancel|terminate        - Cancel or terminate backends
//	pgcenter config locate|edit|show|reload - Server configuration files
//	pgcenter version [--server]             - Version information
//
// # Connection settings
//
// Connection parameters are resolved in this order: command-line flags
// (-h, -p, -U, -d), then the libpq environment (PGHOST, PGPORT, PGUSER,
// PGDATABASE, PGPASSWORD), then the defaults /tmp, 5432 and postgres. When no
// connection flag is given, the dashboard restores the screens saved in
// ~/.pgcenterrc on the previous exit.
//
// Passwords are never saved. Use -W to be asked for one, --prompt for an
// interactive connection form, PGPASSWORD, or ~/.pgpass.
package cli
