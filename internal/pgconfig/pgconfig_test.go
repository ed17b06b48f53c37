package pgconfig

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/postgres/pgtest"
)

func settingConn(values map[string]any) *pgtest.FakeConn {
	conn := pgtest.NewFakeConn(160000)
	conn.QueryFunc = func(ctx context.Context, sql string, args []any) (*postgres.Result, error) {
		if sql != settingQuery {
			return nil, fmt.Errorf("unexpected query: %s", sql)
		}
		v, ok := values[args[0].(string)]
		if !ok {
			return pgtest.Rows([]string{"setting"}), nil
		}
		return pgtest.Rows([]string{"setting"}, []any{v}), nil
	}
	return conn
}

func TestLocate(t *testing.T) {
	conn := settingConn(map[string]any{
		"config_file":    "/etc/postgresql/16/main/postgresql.conf",
		"hba_file":       "/etc/postgresql/16/main/pg_hba.conf",
		"ident_file":     "/etc/postgresql/16/main/pg_ident.conf",
		"data_directory": "/var/lib/pgsql/data",
	})

	tests := []struct {
		name string
		want string
	}{
		{ConfigFile, "/etc/postgresql/16/main/postgresql.conf"},
		{HBAFile, "/etc/postgresql/16/main/pg_hba.conf"},
		{IdentFile, "/etc/postgresql/16/main/pg_ident.conf"},
		{RecoveryFile, "/var/lib/pgsql/data/recovery.conf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(context.Background(), conn, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	calls := conn.CallsMatching("pg_settings")
	assert.Equal(t, []any{"data_directory"}, calls[len(calls)-1].Args)
}

func TestLocateMissingSetting(t *testing.T) {
	conn := settingConn(map[string]any{"config_file": nil})

	_, err := Locate(context.Background(), conn, ConfigFile)
	assert.True(t, errors.IsCode(err, errors.ErrLocate))

	_, err = Locate(context.Background(), conn, RecoveryFile)
	assert.True(t, errors.IsCode(err, errors.ErrLocate), "no data_directory means no guess")

	_, err = Locate(context.Background(), conn, "postgresql.auto.conf")
	assert.True(t, errors.IsCode(err, errors.ErrLocate))
}

func TestLocateQueryError(t *testing.T) {
	conn := pgtest.NewFakeConn(160000).On("pg_settings", nil, fmt.Errorf("permission denied"))

	_, err := Locate(context.Background(), conn, HBAFile)
	assert.True(t, errors.IsCode(err, errors.ErrLocate))
}

func TestSettings(t *testing.T) {
	conn := pgtest.NewFakeConn(160000).On("FROM pg_settings ORDER BY", pgtest.Rows(
		[]string{"name", "setting", "unit", "category"},
		[]any{"shared_buffers", "16384", "8kB", "Resource Usage / Memory"},
		[]any{"work_mem", "4096", "kB", "Resource Usage / Memory"},
		[]any{"listen_addresses", "*", nil, "Connections and Authentication"},
	), nil)

	settings, err := Settings(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, settings, 3)
	assert.Equal(t, Setting{Name: "shared_buffers", Value: "16384", Unit: "8kB", Category: "Resource Usage / Memory"}, settings[0])
	assert.Equal(t, "", settings[2].Unit)
}

func TestReload(t *testing.T) {
	ok := pgtest.NewFakeConn(160000).On("pg_reload_conf", pgtest.Rows([]string{"pg_reload_conf"}, []any{true}), nil)
	assert.NoError(t, Reload(context.Background(), ok))

	refused := pgtest.NewFakeConn(160000).On("pg_reload_conf", pgtest.Rows([]string{"pg_reload_conf"}, []any{false}), nil)
	assert.Error(t, Reload(context.Background(), refused))
}

func TestEditor(t *testing.T) {
	t.Setenv("EDITOR", "")
	assert.Equal(t, "vi", Editor())

	t.Setenv("EDITOR", "nano")
	assert.Equal(t, "nano", Editor())
}

func TestEditCommand(t *testing.T) {
	t.Setenv("EDITOR", "code --wait")
	conn := settingConn(map[string]any{"hba_file": "/data/pg_hba.conf"})

	cmd, path, err := EditCommand(context.Background(), conn, HBAFile)
	require.NoError(t, err)
	assert.Equal(t, "/data/pg_hba.conf", path)
	assert.Equal(t, []string{"code", "--wait", "/data/pg_hba.conf"}, cmd.Args)
}

func TestEditCommandRefusesRemote(t *testing.T) {
	conn := settingConn(map[string]any{"hba_file": "/data/pg_hba.conf"})
	conn.Local = false

	_, _, err := EditCommand(context.Background(), conn, HBAFile)
	assert.True(t, errors.IsCode(err, errors.ErrLocate))
	assert.Empty(t, conn.Calls(), "remote edits are refused before any query")
}
