// Package retry runs one action against one host with a bounded number of
// attempts, and decides what counts as success.
//
// For a sync, the executor's success is final. For a push it is not: the
// push command may exit 0 without the key actually working, so every
// successful push is followed by an independent key-only login probe.
package retry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/internal/probe"
	"github.com/rileyhilliard/keyfleet/internal/runlog"
)

// DefaultAttempts is used when Attempts is not positive.
const DefaultAttempts = 3

// Status is how an attempt ended.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// AttemptResult describes one attempt.
type AttemptResult struct {
	Attempt int
	Status  Status
	Err     error
	// Diagnostic is the tail of the process output.
	Diagnostic string
	Duration   time.Duration
}

// Outcome is the final result for one host, and for sync one source.
type Outcome struct {
	Host     nodegroup.Host
	Source   string
	Success  bool
	Attempts []AttemptResult
	// Err is the last coded error when the host failed.
	Err error
}

// Started reports whether any attempt ran. A run cancelled before its first
// attempt has no outcome worth reporting.
func (o Outcome) Started() bool { return len(o.Attempts) > 0 }

// Controller drives attempts for one host at a time. It holds no per-host
// state, so one Controller can serve many workers.
type Controller struct {
	Attempts int
	// Delay is the backoff unit: attempt n waits n*Delay before attempt n+1.
	Delay time.Duration
	// RetrySync allows more than one attempt for sync actions.
	RetrySync bool
	// Prober verifies pushes. Required for push.
	Prober probe.Prober
	Sink   *runlog.Sink
	Log    logger.Logger
}

// Run executes spec against host until it succeeds or attempts run out.
// Progress lines go to out.
func (c *Controller) Run(ctx context.Context, exec action.Executor, host nodegroup.Host, spec action.Spec, out io.Writer) Outcome {
	log := c.Log
	if log == nil {
		log = logger.Noop()
	}

	outcome := Outcome{Host: host, Source: spec.Label()}
	limit := c.limit(spec)

	for n := 1; n <= limit; n++ {
		if n > 1 {
			wait := time.Duration(n-1) * c.Delay
			if err := sleep(ctx, wait); err != nil {
				outcome.Err = interrupted(host, spec, err)
				return outcome
			}
			log.Info("%s: attempt %d/%d", host, n, limit)
		}
		if err := ctx.Err(); err != nil {
			outcome.Err = interrupted(host, spec, err)
			return outcome
		}

		c.Sink.Attempt(host.String(), spec.Label(), string(spec.Kind()), n)
		ar := c.attempt(ctx, exec, host, spec, out, n)
		c.Sink.AttemptResult(host.String(), spec.Label(), n, string(ar.Status), ar.Err, ar.Duration)
		outcome.Attempts = append(outcome.Attempts, ar)

		if ar.Status == StatusSuccess {
			outcome.Success = true
			outcome.Err = nil
			return outcome
		}
		outcome.Err = ar.Err
		log.Debug("%s: attempt %d failed: %s", host, n, errors.Summary(ar.Err))
		if out != nil {
			verb := "failed"
			if ar.Status == StatusTimeout {
				verb = "timed out"
			}
			_, _ = io.WriteString(out, fmt.Sprintf("attempt %d/%d %s: %s\n", n, limit, verb, errors.Summary(ar.Err)))
		}

		// A cancelled run kills the process; retrying would only repeat that.
		if ctx.Err() != nil {
			return outcome
		}
	}
	return outcome
}

func (c *Controller) limit(spec action.Spec) int {
	if spec.Kind() == action.KindSync && !c.RetrySync {
		return 1
	}
	if c.Attempts < 1 {
		return DefaultAttempts
	}
	return c.Attempts
}

func (c *Controller) attempt(ctx context.Context, exec action.Executor, host nodegroup.Host, spec action.Spec, out io.Writer, n int) AttemptResult {
	start := time.Now()
	res := exec.Execute(ctx, host, spec, out)
	ar := AttemptResult{Attempt: n, Err: res.Err, Diagnostic: res.Output}

	if res.Err == nil {
		if push, ok := spec.(action.PushSpec); ok {
			ar.Err = c.verify(ctx, host, push)
		}
	}
	ar.Duration = time.Since(start)

	switch {
	case ar.Err == nil:
		ar.Status = StatusSuccess
	case res.TimedOut || errors.HasCode(ar.Err, errors.ErrTimeout):
		ar.Status = StatusTimeout
	default:
		ar.Status = StatusFailure
	}
	return ar
}

// verify probes key-only login after a push reported success.
func (c *Controller) verify(ctx context.Context, host nodegroup.Host, spec action.PushSpec) error {
	if c.Prober == nil {
		return errors.New(errors.ErrConfig,
			"No verification probe configured for push", "")
	}
	target := host.WithDefaults(spec.User, spec.Port)
	if err := c.Prober.Probe(ctx, target, spec.PrivateKeyPath()); err != nil {
		return errors.WrapWithCode(err, errors.ErrAuth,
			"push exited 0 but key login could not be verified",
			fmt.Sprintf("Check that %s accepts key logins: ssh -o BatchMode=yes -i %s %s",
				host, spec.PrivateKeyPath(), target.Target()))
	}
	return nil
}

func interrupted(host nodegroup.Host, spec action.Spec, err error) error {
	code := errors.ErrTransfer
	if spec.Kind() == action.KindPush {
		code = errors.ErrAuth
	}
	return errors.WrapWithCode(err, code,
		fmt.Sprintf("%s: run interrupted before the attempt could start", host), "")
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
