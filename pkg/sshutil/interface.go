package sshutil

import "context"

// Executor runs commands on a remote host. *Client satisfies it; tests
// substitute fakes.
type Executor interface {
	Exec(ctx context.Context, cmd string) ([]byte, error)
	GetHost() string
	Close() error
}

var _ Executor = (*Client)(nil)
