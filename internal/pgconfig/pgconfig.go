// Package pgconfig finds, lists, edits and reloads server configuration.
package pgconfig

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// File names accepted by Locate.
const (
	ConfigFile   = "config_file"
	HBAFile      = "hba_file"
	IdentFile    = "ident_file"
	RecoveryFile = "recovery.conf"

	dataDirectory = "data_directory"
)

// DefaultEditor is used when $EDITOR is unset.
const DefaultEditor = "vi"

// Files lists the names Locate understands, in menu order.
var Files = []string{ConfigFile, HBAFile, IdentFile, RecoveryFile}

const settingQuery = "SELECT setting FROM pg_settings WHERE name = $1"

// Locate returns the absolute path of a configuration file. recovery.conf
// has no setting of its own and resolves inside data_directory.
func Locate(ctx context.Context, q postgres.Querier, name string) (string, error) {
	switch name {
	case ConfigFile, HBAFile, IdentFile:
		return setting(ctx, q, name)
	case RecoveryFile:
		dir, err := setting(ctx, q, dataDirectory)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, RecoveryFile), nil
	default:
		return "", errors.New(errors.ErrLocate,
			fmt.Sprintf("Unknown configuration file %q", name),
			"Use one of: "+strings.Join(Files, ", "))
	}
}

func setting(ctx context.Context, q postgres.Querier, name string) (string, error) {
	res, err := q.Query(ctx, settingQuery, name)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrLocate,
			fmt.Sprintf("Can't read setting %s", name), "")
	}
	if res == nil || len(res.Rows) == 0 || len(res.Rows[0]) == 0 || res.Rows[0][0] == nil {
		return "", errors.New(errors.ErrLocate,
			fmt.Sprintf("Setting %s is not available", name),
			"Reading file locations requires superuser or pg_read_all_settings")
	}
	path := stat.ValueOf(res.Rows[0][0]).String()
	if path == "" {
		return "", errors.New(errors.ErrLocate,
			fmt.Sprintf("Setting %s is empty", name),
			"Reading file locations requires superuser or pg_read_all_settings")
	}
	return path, nil
}

// Setting is one row of pg_settings.
type Setting struct {
	Name     string
	Value    string
	Unit     string
	Category string
}

const settingsQuery = "SELECT name, setting, unit, category FROM pg_settings ORDER BY category, name"

// Settings lists every server setting grouped by category.
func Settings(ctx context.Context, q postgres.Querier) ([]Setting, error) {
	res, err := q.Query(ctx, settingsQuery)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 4 {
			continue
		}
		out = append(out, Setting{
			Name:     stat.ValueOf(row[0]).String(),
			Value:    stat.ValueOf(row[1]).String(),
			Unit:     stat.ValueOf(row[2]).String(),
			Category: stat.ValueOf(row[3]).String(),
		})
	}
	return out, nil
}

// Reload asks the server to re-read its configuration files.
func Reload(ctx context.Context, q postgres.Querier) error {
	res, err := q.Query(ctx, "SELECT pg_reload_conf()")
	if err != nil {
		return err
	}
	if res == nil || len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return errors.New(errors.ErrQuery, "Unexpected reply to pg_reload_conf()", "")
	}
	if ok, _ := res.Rows[0][0].(bool); !ok {
		return errors.New(errors.ErrQuery, "Server refused to reload configuration",
			"Check the server log for details")
	}
	return nil
}

// Editor returns $EDITOR or DefaultEditor.
func Editor() string {
	if e := strings.TrimSpace(os.Getenv("EDITOR")); e != "" {
		return e
	}
	return DefaultEditor
}

// EditCommand locates name and returns the editor command for it. Only
// servers on this machine can be edited.
func EditCommand(ctx context.Context, conn postgres.Conn, name string) (*exec.Cmd, string, error) {
	if !conn.IsLocal() {
		return nil, "", errors.New(errors.ErrLocate,
			"Editing configuration files is not supported for remote hosts",
			"Connect over a unix socket or to localhost on the database host")
	}
	path, err := Locate(ctx, conn, name)
	if err != nil {
		return nil, "", err
	}
	args := strings.Fields(Editor())
	args = append(args, path)
	return exec.Command(args[0], args[1:]...), path, nil
}
