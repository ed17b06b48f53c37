package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// version command flags
var (
	versionShort  bool
	versionServer bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash and build date of pgcenter.

With --server, also connect and print the PostgreSQL server version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, version)
		} else {
			writeBuildInfo(out)
		}
		if !versionServer {
			return nil
		}
		return withServer(cmd.Context(), func(ctx context.Context, c postgres.Conn) error {
			fmt.Fprintf(out, "server: PostgreSQL %s (%s)\n", postgres.FormatVersion(c.ServerVersion()), c.Params())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	versionCmd.Flags().BoolVar(&versionServer, "server", false, "Also print the version of the connected server")
}

func writeBuildInfo(w io.Writer) {
	fmt.Fprintf(w, "pgcenter %s\n", formatVersion(version))
	for _, kv := range [][2]string{
		{"commit", commit},
		{"built", date},
		{"go", runtime.Version()},
		{"os/arch", runtime.GOOS + "/" + runtime.GOARCH},
	} {
		fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1])
	}
}

// formatVersion adds the 'v' prefix to release versions.
func formatVersion(v string) string {
	if v == "" || v == "dev" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

// SetVersionInfo records the ldflags values from main.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
	rootCmd.Version = formatVersion(v)
}
