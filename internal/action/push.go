package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/askpass"
	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
)

// BuildPushArgs constructs the ssh-copy-id arguments.
func BuildPushArgs(host nodegroup.Host, spec PushSpec) []string {
	args := []string{"-i", spec.PublicKeyPath()}
	if host.Port != 0 {
		args = append(args, "-p", strconv.Itoa(host.Port))
	}
	if spec.ConnectTimeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", seconds(spec.ConnectTimeout)))
	}
	return append(args, host.Target())
}

func (r *Runner) push(ctx context.Context, host nodegroup.Host, spec PushSpec, out io.Writer) Result {
	pub := spec.PublicKeyPath()
	if _, err := os.Stat(pub); err != nil {
		return Result{
			ExitCode: -1,
			Err: errors.WrapWithCode(err, errors.ErrInput,
				fmt.Sprintf("Public key %s not found", pub),
				"Generate it with: keyfleet keygen, or pass --generate"),
		}
	}

	sink := newLineSink(out)
	srv, err := askpass.Listen(r.Supplier,
		askpass.WithLogger(r.log()),
		askpass.WithObserver(func(kind credential.PromptKind, answered bool) {
			verb := "answered"
			if !answered {
				verb = "refused"
			}
			sink.emit(fmt.Sprintf("[askpass] %s %s prompt", verb, kind))
		}),
	)
	if err != nil {
		return Result{Err: err, ExitCode: -1}
	}
	defer srv.Close()

	proc := r.run(ctx, spec.Timeout, srv.Env(r.askpassExecutable()), sink,
		orDefault(r.SSHCopyID, "ssh-copy-id"), BuildPushArgs(host, spec)...)

	res := Result{Output: proc.tail, ExitCode: proc.exitCode, TimedOut: proc.timedOut}
	if proc.err == nil {
		return res
	}
	res.Err = pushError(host, spec, proc)
	return res
}

// pushError maps a failed ssh-copy-id run onto an AuthError.
func pushError(host nodegroup.Host, spec PushSpec, proc procResult) error {
	target := host.String()

	if proc.timedOut {
		return errors.WrapWithCode(
			errors.WrapWithCode(proc.err, errors.ErrTimeout,
				fmt.Sprintf("ssh-copy-id gave no result within %s", spec.Timeout), ""),
			errors.ErrAuth,
			fmt.Sprintf("Key push to %s timed out", target),
			"The host may be waiting on a prompt keyfleet can't answer. Try: ssh-copy-id "+host.Target())
	}
	if proc.canceled {
		return errors.WrapWithCode(proc.err, errors.ErrAuth,
			fmt.Sprintf("Key push to %s was interrupted", target), "")
	}
	if !proc.started {
		return errors.WrapWithCode(proc.err, errors.ErrAuth,
			"Couldn't start ssh-copy-id",
			"Install OpenSSH client tools, or copy the key manually.")
	}

	out := proc.tail
	switch {
	case strings.Contains(out, "Permission denied"):
		return errors.WrapWithCode(proc.err, errors.ErrAuth,
			fmt.Sprintf("Permission denied on %s", target),
			"Double-check the password or credentials and try again.")
	case strings.Contains(out, "Connection refused"):
		return errors.WrapWithCode(proc.err, errors.ErrAuth,
			fmt.Sprintf("Connection refused to %s", target),
			"Make sure SSH is running on the remote machine.")
	case strings.Contains(out, "Could not resolve hostname"):
		return errors.WrapWithCode(proc.err, errors.ErrAuth,
			fmt.Sprintf("Can't resolve hostname %s", target),
			"Check the hostname and your network connection.")
	case strings.Contains(out, "Host key verification failed"),
		strings.Contains(out, "REMOTE HOST IDENTIFICATION HAS CHANGED"):
		return errors.WrapWithCode(proc.err, errors.ErrAuth,
			fmt.Sprintf("Host key for %s doesn't match known_hosts", target),
			"If the host was reinstalled: ssh-keygen -R "+host.Address)
	case strings.Contains(out, "Connection timed out"):
		return errors.WrapWithCode(
			errors.WrapWithCode(proc.err, errors.ErrTimeout, "ssh connect timed out", ""),
			errors.ErrAuth,
			fmt.Sprintf("Couldn't connect to %s", target),
			"Host might be offline or blocked by a firewall.")
	}

	return errors.WrapWithCode(proc.err, errors.ErrAuth,
		fmt.Sprintf("Couldn't copy SSH key to %s (exit %d)", target, proc.exitCode),
		"Try manually: ssh-copy-id -i "+spec.PublicKeyPath()+" "+host.Target())
}
