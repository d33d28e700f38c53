package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Exit code is -1 if the command couldn't be executed at all.
// Cancelling ctx closes the session.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrAuth,
			"Failed to create SSH session",
			"The host accepted the login but refused a session")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	err = session.Run(cmd)
	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		if ctx.Err() != nil {
			return nil, nil, -1, errors.WrapWithCode(ctx.Err(), errors.ErrTimeout,
				fmt.Sprintf("Command on %s was interrupted", c.Host),
				"")
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check the remote shell works: ssh <host> true")
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}
