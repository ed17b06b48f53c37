package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/postgres/pgtest"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
version: 1
interval: 2s
signal_timeout: 3s
screens:
  - slot: 1
    host: db1.internal
    port: 6432
    user: app
    dbname: orders
    context: activity
    min_age: "00:01:00"
  - slot: 3
    context: statements
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 3*time.Second, cfg.SignalTimeout)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout, "missing keys keep defaults")
	require.Len(t, cfg.Screens, 2)
	assert.Equal(t, ScreenConfig{
		Slot: 1, Host: "db1.internal", Port: 6432, User: "app", DBName: "orders",
		Context: "activity", MinAge: "00:01:00",
	}, cfg.Screens[0])
	assert.Equal(t, 3, cfg.Screens[1].Slot)
	assert.NoError(t, Validate(cfg))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		log := logger.NewBufferLogger()
		cfg := LoadOrDefault(filepath.Join(t.TempDir(), ConfigFileName), log)
		assert.Equal(t, DefaultConfig(), cfg)
		assert.False(t, log.HasLevel("warn"))
	})

	t.Run("corrupt file", func(t *testing.T) {
		log := logger.NewBufferLogger()
		cfg := LoadOrDefault(writeFile(t, "interval: [not, a, duration\n"), log)
		assert.Equal(t, DefaultConfig(), cfg)
		assert.True(t, log.HasLevel("warn"))
	})

	t.Run("invalid values", func(t *testing.T) {
		log := logger.NewBufferLogger()
		cfg := LoadOrDefault(writeFile(t, "interval: 10ms\n"), log)
		assert.Equal(t, time.Second, cfg.Interval)
		assert.True(t, log.HasLevel("warn"))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"future version", func(c *Config) { c.Version = CurrentConfigVersion + 1 }, false},
		{"interval too short", func(c *Config) { c.Interval = 100 * time.Millisecond }, false},
		{"minimum interval", func(c *Config) { c.Interval = screen.MinInterval }, true},
		{"zero signal timeout", func(c *Config) { c.SignalTimeout = 0 }, false},
		{"zero query timeout", func(c *Config) { c.QueryTimeout = 0 }, false},
		{"slot zero", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 0}} }, false},
		{"slot nine", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 9}} }, false},
		{"duplicate slot", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 2}, {Slot: 2}} }, false},
		{"bad port", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 1, Port: 70000}} }, false},
		{"bad context", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 1, Context: "locks"}} }, false},
		{"view name context", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 1, Context: "pg_stat_user_tables"}} }, true},
		{"bad min age", func(c *Config) { c.Screens = []ScreenConfig{{Slot: 1, MinAge: "ten seconds"}} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsCode(err, errors.ErrConfig), "got %v", err)
			}
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ConfigFileName)
	cfg := DefaultConfig()
	cfg.Interval = 1400 * time.Millisecond
	cfg.Screens = []ScreenConfig{{Slot: 2, Host: "/var/run/postgresql", User: "postgres", Context: "tables"}}

	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveNeverWritesPassword(t *testing.T) {
	dialer := &pgtest.FakeDialer{Conn: pgtest.NewFakeConn(160000)}
	s := screen.NewScreen(1, screen.Options{
		Params: postgres.Params{Host: "db1", User: "app", Password: "hunter2"},
	}, screen.Config{Dialer: dialer})
	defer s.Close()

	cfg := DefaultConfig()
	cfg.Screens = FromScreens([]*screen.Screen{s})
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "host: db1")
}

func TestFromScreens(t *testing.T) {
	dialer := &pgtest.FakeDialer{Conn: pgtest.NewFakeConn(160000)}
	s := screen.NewScreen(4, screen.Options{
		Params:  postgres.Params{Host: "db2", Port: 5433, User: "ops", DBName: "billing"},
		Context: stat.LongActivity,
		MinAge:  "00:00:30",
	}, screen.Config{Dialer: dialer})
	defer s.Close()

	got := FromScreens([]*screen.Screen{s})
	assert.Equal(t, []ScreenConfig{{
		Slot: 4, Host: "db2", Port: 5433, User: "ops", DBName: "billing",
		Context: "activity", MinAge: "00:00:30",
	}}, got)
}

func TestScreenConfigOptions(t *testing.T) {
	fallback := postgres.Params{Host: "envhost", Port: 5544, User: "envuser", Password: "secret"}

	opts := ScreenConfig{Slot: 1, User: "app", Context: "functions"}.Options(fallback)
	assert.Equal(t, postgres.Params{Host: "envhost", Port: 5544, User: "app", Password: "secret"}, opts.Params)
	assert.Equal(t, stat.Functions, opts.Context)

	opts = ScreenConfig{Slot: 1, Context: "bogus"}.Options(postgres.Params{})
	assert.Equal(t, stat.DefaultContext, opts.Context)
}

func TestEnvParams(t *testing.T) {
	t.Setenv("PGHOST", "pg.example.com")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGUSER", "report")
	t.Setenv("PGDATABASE", "dwh")
	t.Setenv("PGPASSWORD", "pw")

	assert.Equal(t, postgres.Params{
		Host: "pg.example.com", Port: 6543, User: "report", DBName: "dwh", Password: "pw",
	}, EnvParams())

	t.Setenv("PGPORT", "not-a-port")
	assert.Equal(t, 0, EnvParams().Port)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, ".pgcenterrc"), ExpandTilde("~/.pgcenterrc"))
	assert.Equal(t, "/etc/x", ExpandTilde("/etc/x"))
	assert.Equal(t, "", ExpandTilde(""))
	assert.Equal(t, filepath.Join(home, ConfigFileName), DefaultPath())
}
