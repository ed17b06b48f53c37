// Package sysstat samples CPU usage, load average and uptime of the host
// running the database, either locally or over SSH.
package sysstat

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/pkg/sshutil"
)

// Kernel counter files.
const (
	StatFile    = "/proc/stat"
	LoadAvgFile = "/proc/loadavg"
	UptimeFile  = "/proc/uptime"
)

// Source reads a counter file.
type Source interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Name identifies the host for the dashboard header.
	Name() string
}

// LocalSource reads files from this machine. Root, when set, is prepended to
// every path.
type LocalSource struct {
	Root string
}

func (s LocalSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, path))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrHost,
			"Can't read "+path,
			"Host statistics need a Linux /proc filesystem")
	}
	return data, nil
}

func (s LocalSource) Name() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// SSHSource reads files on a remote host with cat.
type SSHSource struct {
	Client sshutil.Executor
}

func (s SSHSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return s.Client.Exec(ctx, "cat "+path)
}

func (s SSHSource) Name() string {
	return s.Client.GetHost()
}
