package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/signal"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// signal command flags
var (
	signalPIDFlag    int
	signalGroupFlag  string
	signalMinAgeFlag string
	signalYesFlag    bool
)

var signalCmd = &cobra.Command{
	Use:   "signal cancel|terminate",
	Short: "Cancel queries or terminate backends",
	Long: `Cancel the running query of a backend, or terminate it.

Target one backend with --pid, or every backend in a set of states whose
transaction or query is older than --min-age with --group. Group letters:

  a  active
  i  idle
  x  idle in transaction
  w  waiting on a lock
  o  other states, including aborted transactions

Examples:
  pgcenter signal cancel --pid 4242
  pgcenter signal terminate --group x --min-age 00:30:00
  pgcenter signal terminate --group a --min-age "5 min" --yes`,
	ValidArgs: []string{"cancel", "terminate"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := signal.ParseAction(args[0])
		if err != nil {
			return err
		}
		return runSignal(cmd.Context(), cmd.OutOrStdout(), action)
	},
}

func init() {
	signalCmd.Flags().IntVar(&signalPIDFlag, "pid", 0, "backend process id")
	signalCmd.Flags().StringVar(&signalGroupFlag, "group", "", "backend states to signal (letters from aixwo)")
	signalCmd.Flags().StringVar(&signalMinAgeFlag, "min-age", stat.DefaultMinAge, "minimum transaction or query age for --group")
	signalCmd.Flags().BoolVarP(&signalYesFlag, "yes", "y", false, "skip the confirmation for --group")
	signalCmd.MarkFlagsMutuallyExclusive("pid", "group")
	signalCmd.MarkFlagsOneRequired("pid", "group")
	rootCmd.AddCommand(signalCmd)
}

// confirmGroupSignal asks before signalling a group. Tests replace it.
var confirmGroupSignal = func(action signal.Action, set signal.GroupSet, minAge string) (bool, error) {
	if err := requireTerminal("Confirmation"); err != nil {
		return false, errors.New(errors.ErrSignal,
			"Refusing to signal a group without confirmation",
			"Pass --yes to confirm non-interactively")
	}
	confirm := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s %s sessions older than %s?", action, set.Describe(), minAge)).
				Description("Every matching backend on the server is signalled.").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirm, nil
}

func runSignal(ctx context.Context, out io.Writer, action signal.Action) error {
	var set signal.GroupSet
	if signalPIDFlag == 0 {
		var err error
		if set, err = signal.ParseGroupSet(signalGroupFlag); err != nil {
			return err
		}
		if err := set.Validate(); err != nil {
			return err
		}
		if err := stat.ValidateInterval(signalMinAgeFlag); err != nil {
			return err
		}
		if !signalYesFlag {
			ok, err := confirmGroupSignal(action, set, signalMinAgeFlag)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "canceled")
				return nil
			}
		}
	}

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

	d := signal.NewDispatcher(c, cfg.SignalTimeout, logger.NewEnvLogger("[signal]"))
	if signalPIDFlag != 0 {
		res := d.Signal(ctx, action, signalPIDFlag)
		if res.Err != nil {
			return res.Err
		}
		fmt.Fprintf(out, "%s sent to %d\n", action, signalPIDFlag)
		return nil
	}

	report, err := d.SignalGroup(ctx, action, set, signalMinAgeFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.Summary())
	for _, r := range report.Failed() {
		fmt.Fprintf(out, "  %d: %s\n", r.PID, errors.Short(r.Err))
	}
	return nil
}
