package action

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/util"
)

// waitDelay is how long a killed process gets to release its output pipes.
const waitDelay = 2 * time.Second

// procResult is the raw outcome of one external process.
type procResult struct {
	err      error
	exitCode int
	// started is false when the binary couldn't be launched at all.
	started  bool
	timedOut bool
	canceled bool
	tail     string
}

// run executes name with args, streaming lines to sink. A positive timeout
// bounds the run; cancelling ctx kills the process.
func (r *Runner) run(ctx context.Context, timeout time.Duration, env []string, sink *lineSink, name string, args ...string) procResult {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout := &lineWriter{sink: sink}
	stderr := &lineWriter{sink: sink}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	r.log().Debug("exec: %s", util.ShellJoin(append([]string{name}, args...)))

	err := cmd.Run()
	stdout.flush()
	stderr.flush()

	res := procResult{err: err, tail: sink.Tail(), started: cmd.Process != nil}
	if err == nil {
		return res
	}

	res.exitCode = -1
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		res.canceled = true
	case runCtx.Err() == context.DeadlineExceeded:
		res.timedOut = true
	}
	return res
}
