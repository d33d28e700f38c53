// Package testing provides test doubles for the action package.
package testing

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
)

// Call records one Execute call.
type Call struct {
	Host nodegroup.Host
	Spec action.Spec
}

// FakeExecutor returns scripted results per host without running anything.
// It also tracks how many calls overlap, overall and per host.
type FakeExecutor struct {
	mu sync.Mutex

	// results holds the errors returned for successive calls per host alias.
	// The last entry repeats once the script runs out.
	results map[string][]error

	// ProgressLines are written to out on every call.
	ProgressLines []string
	// Delay is how long each call takes; it respects ctx.
	Delay time.Duration

	Calls []Call

	inFlight        int
	maxInFlight     int
	hostInFlight    map[string]int
	maxHostInFlight int
}

// NewFakeExecutor creates an executor that succeeds by default.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		results:      make(map[string][]error),
		hostInFlight: make(map[string]int),
	}
}

// Script sets the results for host's successive calls. nil means success.
func (f *FakeExecutor) Script(host string, results ...error) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[host] = results
	return f
}

// SetProgress configures lines to emit on every call.
func (f *FakeExecutor) SetProgress(lines ...string) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProgressLines = lines
	return f
}

// SetDelay makes every call take d.
func (f *FakeExecutor) SetDelay(d time.Duration) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Delay = d
	return f
}

// Execute implements action.Executor.
func (f *FakeExecutor) Execute(ctx context.Context, host nodegroup.Host, spec action.Spec, out io.Writer) action.Result {
	f.mu.Lock()
	n := 0
	for _, c := range f.Calls {
		if c.Host.String() == host.String() {
			n++
		}
	}
	f.Calls = append(f.Calls, Call{Host: host, Spec: spec})

	var err error
	if script := f.results[host.String()]; len(script) > 0 {
		if n >= len(script) {
			n = len(script) - 1
		}
		err = script[n]
	}

	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.hostInFlight[host.Key()]++
	if f.hostInFlight[host.Key()] > f.maxHostInFlight {
		f.maxHostInFlight = f.hostInFlight[host.Key()]
	}
	lines := f.ProgressLines
	delay := f.Delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.hostInFlight[host.Key()]--
		f.mu.Unlock()
	}()

	start := time.Now()
	if out != nil {
		for _, line := range lines {
			_, _ = io.WriteString(out, line+"\n")
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return action.Result{Err: ctx.Err(), ExitCode: -1, Duration: time.Since(start)}
		}
	}

	res := action.Result{Err: err, Duration: time.Since(start)}
	if err != nil {
		res.ExitCode = 1
		res.Output = err.Error()
	}
	return res
}

// CallCount returns how many times host was executed.
func (f *FakeExecutor) CallCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Host.String() == host {
			n++
		}
	}
	return n
}

// CallOrder returns the host of every call in order.
func (f *FakeExecutor) CallOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Host.String()
	}
	return out
}

// MaxInFlight returns the largest number of overlapping calls seen.
func (f *FakeExecutor) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// MaxHostInFlight returns the largest number of overlapping calls to one host seen.
func (f *FakeExecutor) MaxHostInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxHostInFlight
}

// Reset clears recorded calls and counters.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.maxInFlight = 0
	f.maxHostInFlight = 0
}
