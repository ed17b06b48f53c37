package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pgcenter/internal/config"
	"github.com/rileyhilliard/pgcenter/internal/logger"
)

// Persistent flags
var (
	cfgFile string
	logFile string
	noColor bool
	conn    connFlags
)

var rootCmd = &cobra.Command{
	Use:   "pgcenter",
	Short: "Top-like statistics viewer for PostgreSQL",
	Long: `pgcenter shows PostgreSQL statistics views as refreshing, sortable tables,
with per-second rates for cumulative counters. Up to 8 screens can watch
different servers at once.

Examples:
  # Local server over the default unix socket
  pgcenter

  # Remote server, asking for the password
  pgcenter -h db1.example.com -U app -d orders -W

  # Terminate sessions idle in a transaction for more than 10 minutes
  pgcenter signal terminate --group x --min-age 00:10:00`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if colorDisabled(noColor, os.Getenv("NO_COLOR")) {
			disableColor()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTop(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "settings file (default ~/.pgcenterrc)")
	pf.StringVar(&logFile, "log-file", "", "log file while the dashboard runs (default ~/.pgcenter/pgcenter.log)")
	pf.BoolVar(&noColor, "no-color", false, "disable colors (also NO_COLOR)")

	// -h is the host, as in psql; cobra falls back to --help only.
	pf.StringVarP(&conn.Host, "host", "h", "", "database server host or socket directory")
	pf.IntVarP(&conn.Port, "port", "p", 0, "database server port")
	pf.StringVarP(&conn.User, "username", "U", "", "database user name")
	pf.StringVarP(&conn.DBName, "dbname", "d", "", "database name to connect to")
	pf.BoolVarP(&conn.AskPassword, "password", "W", false, "ask for a password")
	pf.BoolVar(&conn.Prompt, "prompt", false, "fill in the connection in a form")

	addTopFlags(rootCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// settingsPath returns the --config path or ~/.pgcenterrc.
func settingsPath() string {
	if cfgFile != "" {
		return config.ExpandTilde(cfgFile)
	}
	return config.DefaultPath()
}

// loadSettings reads the settings file, falling back to defaults.
func loadSettings() *config.Config {
	return config.LoadOrDefault(settingsPath(), logger.NewEnvLogger("[config]"))
}

// colorDisabled follows the NO_COLOR convention: any non-empty value
// disables color.
func colorDisabled(flag bool, env string) bool {
	return flag || strings.TrimSpace(env) != ""
}

func disableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for pgcenter.

Examples:
  # Bash
  pgcenter completion bash > /etc/bash_completion.d/pgcenter

  # Zsh
  pgcenter completion zsh > "${fpath[1]}/_pgcenter"

  # Fish
  pgcenter completion fish > ~/.config/fish/completions/pgcenter.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		default:
			return rootCmd.GenPowerShellCompletion(out)
		}
	},
}
