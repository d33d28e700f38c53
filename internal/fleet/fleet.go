// Package fleet runs an action across every resolved host and collects the
// outcomes into a Report.
//
// Hosts are isolated from each other: one host failing, timing out or
// hanging never stops the others. With one worker hosts run in resolution
// order; with more, a bounded pool runs them concurrently while keeping at
// most one external process per machine and a deterministic report order.
package fleet

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/internal/retry"
	"github.com/rileyhilliard/keyfleet/internal/runlog"
	"github.com/rileyhilliard/keyfleet/internal/ui"
)

// Orchestrator fans an action out over hosts.
type Orchestrator struct {
	controller *retry.Controller
	exec       action.Executor
	workers    int
	out        io.Writer
	sink       *runlog.Sink
	log        logger.Logger
	strict     bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets how many hosts run at once. Values below 2 run sequentially.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithOutput sets where progress lines and notices go.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// WithSink records the run in a run log.
func WithSink(s *runlog.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithStrictSources makes missing sync sources fail the run.
func WithStrictSources(strict bool) Option {
	return func(o *Orchestrator) { o.strict = strict }
}

// New creates an Orchestrator that runs each host through controller.
func New(controller *retry.Controller, exec action.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		controller: controller,
		exec:       exec,
		workers:    1,
		out:        io.Discard,
		log:        logger.Noop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// job is one (source, host) pair.
type job struct {
	host nodegroup.Host
	spec action.Spec
}

func (j job) label() string {
	if src := j.spec.Label(); src != "" {
		return fmt.Sprintf("%s (%s)", j.host, src)
	}
	return j.host.String()
}

// Push installs the key on every host.
func (o *Orchestrator) Push(ctx context.Context, hosts []nodegroup.Host, spec action.PushSpec) (*Report, error) {
	if len(hosts) == 0 {
		return nil, errors.New(errors.ErrInput,
			"No target hosts",
			"Check the mode and your group definitions: keyfleet groups")
	}

	report := &Report{Kind: action.KindPush, StrictSources: o.strict, Start: time.Now()}
	jobs := make([]job, len(hosts))
	for i, h := range hosts {
		jobs[i] = job{host: h, spec: spec}
	}

	o.sink.Event("run", zap.String("kind", string(action.KindPush)), zap.Int("hosts", len(hosts)))
	o.execute(ctx, jobs, report)
	return report, nil
}

// Sync copies every existing source to every host. Missing sources are
// skipped once, with a notice, and never attempted.
func (o *Orchestrator) Sync(ctx context.Context, hosts []nodegroup.Host, sources []string, spec action.SyncSpec) (*Report, error) {
	if len(hosts) == 0 {
		return nil, errors.New(errors.ErrInput,
			"No target hosts",
			"Check the mode and your group definitions: keyfleet groups")
	}
	if len(sources) == 0 {
		return nil, errors.New(errors.ErrInput,
			"No sources to sync",
			"Pass one or more paths: keyfleet sync <mode> <path>...")
	}

	report := &Report{Kind: action.KindSync, StrictSources: o.strict, Start: time.Now()}
	o.sink.Event("run",
		zap.String("kind", string(action.KindSync)),
		zap.Int("hosts", len(hosts)),
		zap.Strings("sources", sources))

	var jobs []job
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			report.Skipped = append(report.Skipped, src)
			o.sink.Event("source_skipped", zap.String("source", src), zap.String("reason", err.Error()))
			fmt.Fprintf(o.out, "%s\n", ui.WarningStyle().Render(fmt.Sprintf("%s Skipping %s: source not found", ui.SymbolWarning, src)))
			continue
		}
		s := spec.ForSource(src)
		for _, h := range hosts {
			jobs = append(jobs, job{host: h, spec: s})
		}
	}

	o.execute(ctx, jobs, report)
	return report, nil
}

// execute runs jobs and fills in the report's entries.
func (o *Orchestrator) execute(ctx context.Context, jobs []job, report *Report) {
	report.Planned = len(jobs)
	out := &lockedWriter{w: o.out}

	var results []*retry.Outcome
	if o.workers <= 1 {
		results = o.runSequential(ctx, jobs, out)
	} else {
		results = o.runPool(ctx, jobs, out)
	}

	allDone := true
	for _, r := range results {
		if r == nil {
			allDone = false
			continue
		}
		report.Entries = append(report.Entries, *r)
	}
	report.End = time.Now()

	if ctx.Err() != nil && (!allDone || len(report.Failed()) > 0) {
		report.Interrupted = true
	}
	o.sink.Event("run_end",
		zap.Bool("success", report.Success()),
		zap.Int("attempted", len(report.Entries)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("skipped", len(report.Skipped)),
		zap.Bool("interrupted", report.Interrupted),
		zap.Duration("duration", report.Duration()))
}

func (o *Orchestrator) runSequential(ctx context.Context, jobs []job, out *lockedWriter) []*retry.Outcome {
	results := make([]*retry.Outcome, len(jobs))
	for i, j := range jobs {
		if ctx.Err() != nil {
			o.log.Info("cancelled; %d of %d not started", len(jobs)-i, len(jobs))
			break
		}
		results[i] = o.runJob(ctx, j, out, false)
	}
	return results
}

func (o *Orchestrator) runPool(ctx context.Context, jobs []job, out *lockedWriter) []*retry.Outcome {
	results := make([]*retry.Outcome, len(jobs))

	// One lock per machine, built up front so workers only read the map.
	hostLocks := make(map[string]*sync.Mutex)
	for _, j := range jobs {
		if _, ok := hostLocks[j.host.Key()]; !ok {
			hostLocks[j.host.Key()] = &sync.Mutex{}
		}
	}

	sem := semaphore.NewWeighted(int64(o.workers))
	var wg sync.WaitGroup

	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			defer sem.Release(1)

			lock := hostLocks[j.host.Key()]
			lock.Lock()
			defer lock.Unlock()

			if ctx.Err() != nil {
				return
			}
			results[i] = o.runJob(ctx, j, out, true)
		}(i, j)
	}

	wg.Wait()
	return results
}

// runJob runs one host through the retry controller and prints its block.
// It returns nil when cancellation beat the first attempt.
func (o *Orchestrator) runJob(ctx context.Context, j job, out *lockedWriter, buffered bool) *retry.Outcome {
	start := time.Now()
	block := newHostBlock(out, o.sink.Writer(j.host.String(), j.spec.Label(), "progress"), buffered)
	defer block.flush()

	block.header(j.label())
	outcome := o.controller.Run(ctx, o.exec, j.host, j.spec, block)
	if !outcome.Started() {
		block.notStarted(j.label())
		o.log.Debug("%s not started: %s", j.label(), errors.Summary(outcome.Err))
		return nil
	}
	block.result(j.label(), outcome, time.Since(start))

	if outcome.Success {
		o.log.Debug("%s succeeded after %d attempt(s)", j.label(), len(outcome.Attempts))
	} else {
		o.log.Debug("%s failed: %s", j.label(), errors.Summary(outcome.Err))
	}
	return &outcome
}
