// Package probe checks that key-based login to a host works without any
// interactive fallback. A successful ssh-copy-id run proves little on its own:
// the key may have landed in the wrong account, or sshd may ignore it.
package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
)

// marker is echoed by the remote shell to prove a command really ran.
const marker = "keyfleet-ok"

// Prober verifies key-only login to host with the private key at keyPath.
type Prober interface {
	Probe(ctx context.Context, host nodegroup.Host, keyPath string) error
}

// Func adapts a function to Prober.
type Func func(ctx context.Context, host nodegroup.Host, keyPath string) error

// Probe implements Prober.
func (f Func) Probe(ctx context.Context, host nodegroup.Host, keyPath string) error {
	return f(ctx, host, keyPath)
}

// FailReason categorizes why a probe failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailAuth
	FailHostKey
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailAuth:
		return "key not accepted"
	case FailHostKey:
		return "host key verification failed"
	default:
		return "unknown error"
	}
}

// Error is a failed probe with a categorized reason.
type Error struct {
	Host   string
	Reason FailReason
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Host, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Host, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// categorize sorts a failure by the text ssh or the dialer produced.
func categorize(host string, err error, output string) *Error {
	if err == nil {
		return nil
	}
	perr := &Error{Host: host, Reason: FailUnknown, Cause: err}

	if errors.HasCode(err, errors.ErrTimeout) {
		perr.Reason = FailTimeout
		return perr
	}

	text := strings.ToLower(err.Error() + "\n" + output)
	switch {
	case strings.Contains(text, "timeout") || strings.Contains(text, "timed out"):
		perr.Reason = FailTimeout
	case strings.Contains(text, "connection refused"):
		perr.Reason = FailRefused
	case strings.Contains(text, "no route to host"),
		strings.Contains(text, "network is unreachable"),
		strings.Contains(text, "host is down"),
		strings.Contains(text, "could not resolve hostname"):
		perr.Reason = FailUnreachable
	case strings.Contains(text, "host key"),
		strings.Contains(text, "remote host identification has changed"):
		perr.Reason = FailHostKey
	case strings.Contains(text, "unable to authenticate"),
		strings.Contains(text, "no supported methods"),
		strings.Contains(text, "permission denied"),
		strings.Contains(text, "authentication failed"):
		perr.Reason = FailAuth
	}
	return perr
}

// asCoded wraps a probe failure in the error code callers act on.
func asCoded(perr *Error) error {
	code := errors.ErrAuth
	if perr.Reason == FailTimeout {
		code = errors.ErrTimeout
	}
	return errors.WrapWithCode(perr, code,
		fmt.Sprintf("Key login to %s didn't work: %s", perr.Host, perr.Reason),
		suggestion(perr))
}

func suggestion(perr *Error) string {
	switch perr.Reason {
	case FailAuth:
		return "The key may have been installed for a different user. Try: ssh -o BatchMode=yes " + perr.Host
	case FailHostKey:
		return "If the host was reinstalled, remove the stale known_hosts entry: ssh-keygen -R <host>"
	case FailRefused, FailUnreachable, FailTimeout:
		return "Make sure the host is reachable and sshd is running"
	}
	return "Try: ssh -v -o BatchMode=yes " + perr.Host
}
