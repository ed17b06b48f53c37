package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// Exec runs cmd in a new session and returns its stdout. A non-zero exit
// status is an error carrying the first line of stderr. Cancelling ctx closes
// the session.
func (c *Client) Exec(ctx context.Context, cmd string) ([]byte, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		session.Close()
		return nil, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, errors.New(errors.ErrHost,
				fmt.Sprintf("'%s' exited with status %d on %s", cmd, exitErr.ExitStatus(), c.Host),
				strings.TrimSpace(firstLine(stderr.String())))
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to run '%s' on %s", cmd, c.Host),
			"The SSH connection may have dropped.")
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
