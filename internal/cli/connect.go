package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rileyhilliard/pgcenter/internal/config"
	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

// connFlags are the psql-style connection flags.
type connFlags struct {
	Host        string
	Port        int
	User        string
	DBName      string
	AskPassword bool
	Prompt      bool
}

// explicit reports whether any connection was named on the command line.
func (f connFlags) explicit() bool {
	return f.Host != "" || f.Port != 0 || f.User != "" || f.DBName != "" || f.Prompt
}

// params merges the flags over env. Defaults are applied by the caller.
func (f connFlags) params(env postgres.Params) postgres.Params {
	return config.Merge(postgres.Params{
		Host:   f.Host,
		Port:   f.Port,
		User:   f.User,
		DBName: f.DBName,
	}, env)
}

// newDialer builds the dialer used by every command. Tests swap it for a fake.
var newDialer = func(timeout time.Duration) postgres.Dialer {
	d := postgres.NewPgxDialer(logger.NewEnvLogger("[postgres]"))
	if timeout > 0 {
		d.ConnectTimeout = timeout
	}
	return d
}

// resolveParams turns flags, environment, form and password prompt into the
// connection of a one-shot command.
func resolveParams(f connFlags) (postgres.Params, error) {
	p := f.params(config.EnvParams()).WithDefaults()
	if f.Prompt {
		var err error
		if p, err = promptConnection(p); err != nil {
			return p, err
		}
	}
	if f.AskPassword && p.Password == "" {
		pw, err := readPassword(p)
		if err != nil {
			return p, err
		}
		p.Password = pw
	}
	return p, nil
}

// dial connects a one-shot command to p.
func dial(ctx context.Context, cfg *config.Config, p postgres.Params) (postgres.Conn, error) {
	return newDialer(cfg.ConnectTimeout).Dial(ctx, p)
}

func requireTerminal(what string) error {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return errors.New(errors.ErrConfig,
		what+" needs an interactive terminal",
		"Set PGPASSWORD or use ~/.pgpass when running non-interactively")
}

// readPassword asks for the password of p without echoing it.
func readPassword(p postgres.Params) (string, error) {
	if err := requireTerminal("Password prompt"); err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", p)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Failed to read password", "")
	}
	return string(b), nil
}

// promptConnection shows a form prefilled with p.
func promptConnection(p postgres.Params) (postgres.Params, error) {
	if err := requireTerminal("Connection form"); err != nil {
		return p, err
	}
	port := strconv.Itoa(p.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Host").
				Description("Hostname, IP address or unix socket directory").
				Value(&p.Host),
			huh.NewInput().
				Title("Port").
				Value(&port).
				Validate(validatePort),
			huh.NewInput().
				Title("User").
				Value(&p.User),
			huh.NewInput().
				Title("Database").
				Value(&p.DBName),
			huh.NewInput().
				Title("Password").
				Description("Leave empty to use PGPASSWORD or ~/.pgpass").
				EchoMode(huh.EchoModePassword).
				Value(&p.Password),
		),
	)
	if err := form.Run(); err != nil {
		return p, errors.WrapWithCode(err, errors.ErrConfig, "Connection form canceled", "")
	}

	p.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	p.Host = strings.TrimSpace(p.Host)
	p.User = strings.TrimSpace(p.User)
	p.DBName = strings.TrimSpace(p.DBName)
	return p.WithDefaults(), nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
