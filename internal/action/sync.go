package action

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/pkg/sshutil"
)

// BuildSyncArgs constructs the rsync arguments. sshBin is the ssh used as the
// remote shell.
func BuildSyncArgs(host nodegroup.Host, spec SyncSpec, sshBin string) []string {
	args := []string{"-az", "--progress"}
	if spec.DryRun {
		args = append(args, "--dry-run")
	}
	for _, pattern := range spec.Exclude {
		args = append(args, "--exclude="+pattern)
	}

	// BatchMode keeps ssh from prompting; rsync has no terminal to answer with.
	sshCmd := orDefault(sshBin, "ssh")
	if host.Port != 0 {
		sshCmd = fmt.Sprintf("%s -p %d", sshCmd, host.Port)
	}
	sshCmd += " -o BatchMode=yes"
	if spec.ConnectTimeout > 0 {
		sshCmd = fmt.Sprintf("%s -o ConnectTimeout=%d", sshCmd, seconds(spec.ConnectTimeout))
	}
	args = append(args, "-e", sshCmd)

	source := spec.Source
	if spec.Target == "" {
		// Without a target the source lands in its own parent; a trailing
		// slash would spill its contents there instead.
		source = strings.TrimRight(source, "/")
		if source == "" {
			source = "/"
		}
	}

	return append(args, source, host.Target()+":"+spec.Destination())
}

func (r *Runner) sync(ctx context.Context, host nodegroup.Host, spec SyncSpec, out io.Writer) Result {
	sink := newLineSink(out)
	dest := spec.VerifyPath()

	guard := spec.DryRun && spec.VerifyDryRun
	var before sshutil.Tree
	if guard {
		if r.Snapshotter == nil {
			return Result{ExitCode: -1, Err: errors.New(errors.ErrConfig,
				"Dry-run verification needs an sftp snapshotter", "")}
		}
		tree, err := r.Snapshotter.Snapshot(ctx, host, dest)
		if err != nil {
			return Result{ExitCode: -1, Err: errors.WrapWithCode(err, errors.ErrTransfer,
				fmt.Sprintf("Couldn't snapshot %s on %s before the dry run", dest, host), "")}
		}
		before = tree
		sink.emit(fmt.Sprintf("[verify] %s has %d entries before dry run", dest, len(tree)))
	}

	proc := r.run(ctx, spec.Timeout, nil, sink,
		orDefault(r.Rsync, "rsync"), BuildSyncArgs(host, spec, r.SSH)...)

	res := Result{Output: proc.tail, ExitCode: proc.exitCode, TimedOut: proc.timedOut}
	if proc.err != nil {
		res.Err = syncError(host, spec, proc)
		return res
	}

	if guard {
		after, err := r.Snapshotter.Snapshot(ctx, host, dest)
		if err != nil {
			res.Err = errors.WrapWithCode(err, errors.ErrTransfer,
				fmt.Sprintf("Couldn't snapshot %s on %s after the dry run", dest, host), "")
			return res
		}
		if changed := before.Diff(after); len(changed) > 0 {
			res.Err = errors.New(errors.ErrTransfer,
				fmt.Sprintf("Dry run changed %d path(s) under %s on %s: %s",
					len(changed), dest, host, strings.Join(firstN(changed, 5), ", ")),
				"Something else may be writing to the destination, or rsync ignored --dry-run")
			return res
		}
		sink.emit(fmt.Sprintf("[verify] %s unchanged after dry run", dest))
		res.Output = sink.Tail()
	}

	return res
}

// syncError maps a failed rsync run onto a TransferError.
func syncError(host nodegroup.Host, spec SyncSpec, proc procResult) error {
	if proc.timedOut {
		return errors.WrapWithCode(
			errors.WrapWithCode(proc.err, errors.ErrTimeout,
				fmt.Sprintf("rsync gave no result within %s", spec.Timeout), ""),
			errors.ErrTransfer,
			fmt.Sprintf("Sync of %s to %s timed out", spec.Source, host),
			"Raise sync.timeout for large transfers")
	}
	if proc.canceled {
		return errors.WrapWithCode(proc.err, errors.ErrTransfer,
			fmt.Sprintf("Sync of %s to %s was interrupted", spec.Source, host), "")
	}
	if !proc.started {
		return errors.WrapWithCode(proc.err, errors.ErrTransfer,
			"Couldn't start rsync",
			"Grab it with: brew install rsync (macOS) or apt install rsync (Linux)")
	}
	return handleRsyncError(proc.err, host.String(), proc.exitCode)
}

// handleRsyncError wraps rsync exit errors with helpful messages.
func handleRsyncError(err error, hostName string, exitCode int) error {
	if _, ok := err.(*exec.ExitError); !ok {
		return errors.WrapWithCode(err, errors.ErrTransfer,
			"rsync failed",
			"Try running rsync manually to diagnose")
	}

	// See: https://download.samba.org/pub/rsync/rsync.1
	var msg, suggestion string
	switch exitCode {
	case 1:
		msg = "rsync syntax or usage error"
		suggestion = "Check your exclude patterns and paths for invalid options"
	case 2:
		msg = "rsync protocol incompatibility"
		suggestion = "Ensure rsync versions are compatible on local and remote"
	case 3:
		msg = "File selection error"
		suggestion = "Check that source paths exist and are readable"
	case 5:
		msg = "Error starting client-server protocol"
		suggestion = "Check SSH connection and remote rsync installation"
	case 10:
		msg = "Error in socket I/O"
		suggestion = "Check network connectivity to the remote host"
	case 11:
		msg = "Error in file I/O"
		suggestion = "Check disk space and file permissions on both local and remote"
	case 12:
		msg = "Error in rsync protocol data stream"
		suggestion = "Is rsync installed on the remote? apt install rsync (Debian/Ubuntu) or yum install rsync (RHEL)"
	case 23:
		msg = "Partial transfer due to error"
		suggestion = "Some files may have permission issues, check the output above"
	case 24:
		msg = "Partial transfer due to vanished source files"
		suggestion = "Files were modified during sync, run it again"
	case 30:
		msg = "Timeout in data send/receive"
		suggestion = "Check network stability to the remote host"
	case 255:
		msg = fmt.Sprintf("SSH connection to '%s' failed", hostName)
		suggestion = "Check that key login works: ssh -o BatchMode=yes " + hostName + " (or run keyfleet push)"
	default:
		msg = fmt.Sprintf("rsync exited with code %d", exitCode)
		suggestion = "Check the output above for specific error details"
	}

	return errors.WrapWithCode(err, errors.ErrTransfer,
		fmt.Sprintf("%s (%s)", msg, hostName), suggestion)
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return append(items[:n:n], fmt.Sprintf("and %d more", len(items)-n))
}
