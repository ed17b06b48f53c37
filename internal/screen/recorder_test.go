package screen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

func TestNewRecorderCreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "logs")
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	r, err := NewRecorder(base, 4, "app@orders db", at)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, filepath.Join(base, "screen4-app@orders-db-20240102-030405.log"), r.Path())
	_, err = os.Stat(r.Path())
	assert.NoError(t, err)
}

func TestRecorderWrite(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), 1, "postgres@postgres", time.Now())
	require.NoError(t, err)

	c := stat.NewCatalog().Resolve(stat.Functions)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	params := postgres.Params{}.WithDefaults()

	require.NoError(t, r.Write(Table{
		Context: c,
		Params:  params,
		Columns: []string{"function", "calls"},
		Rows: []stat.DiffRow{
			{Key: "1", Values: []stat.Value{stat.TextOf("public.f"), stat.FloatOf(2.5)}},
		},
		At: at,
	}))
	require.NoError(t, r.Write(Table{
		Context: c,
		Params:  params,
		At:      at.Add(time.Second),
		Err:     errors.New(errors.ErrQuery, "permission denied for pg_stat_user_functions", ""),
	}))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Equal(t,
		"2024-01-02 03:04:05 postgres@/tmp:5432/postgres [functions]\n"+
			"function\tcalls\n"+
			"public.f\t2.50\n"+
			"\n"+
			"2024-01-02 03:04:06 postgres@/tmp:5432/postgres [functions] error: permission denied for pg_stat_user_functions\n"+
			"\n",
		string(data))
}

func TestRecorderClosed(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), 1, "x", time.Now())
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.Error(t, r.Write(Table{}))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c-d", sanitizeFilename("a/b:c d"))
	assert.Equal(t, "user@db", sanitizeFilename("user@db"))
}
