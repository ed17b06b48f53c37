package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/pgconfig"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Locate, edit, list or reload the server configuration",
	Long: `Work with the configuration of the connected server.

Examples:
  pgcenter config locate hba_file
  pgcenter config edit config_file
  pgcenter config show
  pgcenter config reload`,
}

var configLocateCmd = &cobra.Command{
	Use:       "locate <file>",
	Short:     "Print the path of a configuration file",
	ValidArgs: pgconfig.Files,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(cmd.Context(), func(ctx context.Context, c postgres.Conn) error {
			path, err := pgconfig.Locate(ctx, c, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Open a configuration file in $EDITOR",
	Long: `Open a configuration file of a local server in $EDITOR (default vi).
Run 'pgcenter config reload' afterwards to apply the changes.`,
	ValidArgs: pgconfig.Files,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(cmd.Context(), func(ctx context.Context, c postgres.Conn) error {
			ed, path, err := pgconfig.EditCommand(ctx, c, args[0])
			if err != nil {
				return err
			}
			ed.Stdin = os.Stdin
			ed.Stdout = os.Stdout
			ed.Stderr = os.Stderr
			if err := ed.Run(); err != nil {
				return errors.WrapWithCode(err, errors.ErrLocate,
					"Editor exited with an error",
					"Set EDITOR to a working editor")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "edited %s\n", path)
			return nil
		})
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the server settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(cmd.Context(), func(ctx context.Context, c postgres.Conn) error {
			settings, err := pgconfig.Settings(ctx, c)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		})
	},
}

var configReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the server configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(cmd.Context(), func(ctx context.Context, c postgres.Conn) error {
			if err := pgconfig.Reload(ctx, c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration reloaded")
			return nil
		})
	},
}

func init() {
	configCmd.AddCommand(configLocateCmd, configEditCmd, configShowCmd, configReloadCmd)
	rootCmd.AddCommand(configCmd)
}

// withServer connects with the command-line connection settings and runs fn.
func withServer(ctx context.Context, fn func(context.Context, postgres.Conn) error) error {
	cfg := loadSettings()
	params, err := resolveParams(conn)
	if err != nil {
		return err
	}
	c, err := dial(ctx, cfg, params)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	if cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
	}
	return fn(ctx, c)
}

func printSettings(w io.Writer, settings []pgconfig.Setting) {
	columns := []ui.TableColumn{
		{Title: "name", Width: 40},
		{Title: "setting", Width: 30},
		{Title: "unit", Width: 6},
		{Title: "category", Width: 50},
	}
	rows := make([][]string, len(settings))
	for i, s := range settings {
		rows[i] = []string{s.Name, s.Value, s.Unit, s.Category}
	}
	fmt.Fprintln(w, ui.RenderSimpleTable(columns, rows))
}
