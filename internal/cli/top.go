package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/pgcenter/internal/config"
	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/stat"
	"github.com/rileyhilliard/pgcenter/internal/sysstat"
	"github.com/rileyhilliard/pgcenter/internal/top"
	"github.com/rileyhilliard/pgcenter/pkg/sshutil"
)

// top command flags
var (
	topContextFlag  string
	topIntervalFlag time.Duration
	topSSHHostFlag  string
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the statistics dashboard (default command)",
	Long: `Show PostgreSQL statistics as refreshing tables.

Without connection flags the screens saved on the last exit are reopened.
Press ? inside the dashboard for the key bindings.

Examples:
  pgcenter top --context activity
  pgcenter top -h 10.0.0.5 --ssh-host db5 --interval 2s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTop(cmd)
	},
}

func init() {
	addTopFlags(topCmd)
}

// addTopFlags registers the dashboard flags on cmd. The root command runs
// the dashboard too, so both carry them.
func addTopFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&topContextFlag, "context", "", "initial statistics view (databases, activity, tables, ...)")
	cmd.Flags().DurationVar(&topIntervalFlag, "interval", 0, "refresh interval (default from settings, 1s)")
	cmd.Flags().StringVar(&topSSHHostFlag, "ssh-host", "", "read CPU, load and uptime of this SSH host")
	_ = cmd.RegisterFlagCompletionFunc("context", completeContexts)
	_ = cmd.RegisterFlagCompletionFunc("ssh-host", completeSSHHosts)
}

// plannedScreen is a screen to open at startup.
type plannedScreen struct {
	Slot    int
	Options screen.Options
}

// planScreens decides which screens the dashboard opens. Connection flags
// open a single screen; otherwise the saved screens are restored, or a
// single default screen when none were saved. A non-empty contextName
// overrides the first screen's view.
func planScreens(cfg *config.Config, f connFlags, env postgres.Params, contextName string) ([]plannedScreen, error) {
	var plan []plannedScreen
	if f.explicit() || len(cfg.Screens) == 0 {
		plan = []plannedScreen{{
			Slot:    1,
			Options: screen.Options{Params: f.params(env), Context: stat.DefaultContext},
		}}
	} else {
		for _, sc := range cfg.Screens {
			plan = append(plan, plannedScreen{Slot: sc.Slot, Options: sc.Options(env)})
		}
	}

	if contextName != "" {
		id, err := stat.ParseContextID(contextName)
		if err != nil {
			return nil, err
		}
		plan[0].Options.Context = id
	}
	return plan, nil
}

func runTop(cmd *cobra.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.ErrConfig,
			"The dashboard needs a terminal",
			"Use 'pgcenter signal' or 'pgcenter config' from scripts")
	}

	path := settingsPath()
	cfg := loadSettings()
	if cfg.NoColor {
		disableColor()
	}

	env := config.EnvParams()
	plan, err := planScreens(cfg, conn, env, topContextFlag)
	if err != nil {
		return err
	}
	if conn.explicit() {
		p, err := resolveParams(conn)
		if err != nil {
			return err
		}
		plan[0].Options.Params = p
	}

	logPath := cfg.LogFile
	if logFile != "" {
		logPath = logFile
	}
	closer, err := logger.RedirectToFile(config.ExpandTilde(logPath))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't open the log file "+logPath,
			"Pass a writable path with --log-file")
	}
	defer closer.Close()

	interval := cfg.Interval
	if topIntervalFlag > 0 {
		interval = topIntervalFlag
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mgr := screen.NewManager(screen.Config{
		Dialer:        newDialer(cfg.ConnectTimeout),
		Catalog:       stat.NewCatalog(),
		Interval:      interval,
		QueryTimeout:  cfg.QueryTimeout,
		SignalTimeout: cfg.SignalTimeout,
		LogDir:        config.ExpandTilde(cfg.ScreenLogDir),
		Log:           logger.NewEnvLogger("[screen]"),
	})
	log := logger.NewEnvLogger("[top]")
	for _, ps := range plan {
		if _, err := mgr.Open(ctx, ps.Slot, ps.Options); err != nil {
			log.Warn("screen %d: %s", ps.Slot, errors.Short(err))
		}
	}
	if first, ok := mgr.Screen(plan[0].Slot); ok {
		_ = mgr.Switch(first.Slot())
	}

	sshHost := topSSHHostFlag
	if sshHost == "" {
		sshHost = cfg.SSHHost
	}
	sampler, closeSampler := newHostSampler(ctx, sshHost, plan[0].Options.Params.WithDefaults(), cfg.ConnectTimeout, log)
	defer closeSampler()

	model := top.NewModel(ctx, top.Options{
		Manager:  mgr,
		Sampler:  sampler,
		Defaults: env.WithDefaults(),
		Log:      log,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()

	cfg.Interval = mgr.Interval()
	cfg.Screens = config.FromScreens(mgr.Screens())
	if saveErr := config.Save(path, cfg); saveErr != nil {
		log.Warn("saving settings: %s", errors.Short(saveErr))
	}
	if closeErr := mgr.CloseAll(); closeErr != nil {
		log.Warn("closing screens: %s", errors.Short(closeErr))
	}
	return err
}

// newHostSampler picks where CPU, load and uptime come from: the SSH host
// when one is given, this machine when the database is local, and nowhere
// otherwise.
func newHostSampler(ctx context.Context, sshHost string, p postgres.Params, timeout time.Duration, log logger.Logger) (*sysstat.Sampler, func()) {
	samplerLog := logger.NewEnvLogger("[sampler]")
	if sshHost == "" {
		if !p.IsLocal() {
			return nil, func() {}
		}
		return sysstat.NewSampler(sysstat.LocalSource{}, samplerLog), func() {}
	}

	client, err := sshutil.Dial(ctx, sshHost, sshutil.Options{Timeout: timeout, Log: samplerLog})
	if err != nil {
		log.Warn("host statistics over ssh: %s", errors.Short(err))
		return nil, func() {}
	}
	return sysstat.NewSampler(sysstat.SSHSource{Client: client}, samplerLog), func() {
		_ = client.Close()
		sshutil.CloseAgent()
	}
}

func completeContexts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, c := range stat.NewCatalog().All() {
		names = append(names, fmt.Sprintf("%s\t%s", c.ID, c.Title))
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func completeSSHHosts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	hosts, err := sshutil.ListHosts()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.Alias+"\t"+h.Description())
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
