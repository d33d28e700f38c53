package fleet

import (
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/retry"
	"github.com/rileyhilliard/keyfleet/internal/ui"
	"github.com/rileyhilliard/keyfleet/internal/util"
)

// Report is the aggregate result of one fleet run.
type Report struct {
	Kind action.Kind
	// Entries holds one outcome per attempted (source, host) pair, in
	// resolution order: source-major, then host order.
	Entries []retry.Outcome
	// Skipped lists sources that didn't exist locally.
	Skipped []string
	// Planned is how many (source, host) pairs the run intended to attempt.
	Planned int
	// Interrupted is set when cancellation stopped the run early.
	Interrupted bool
	// StrictSources makes skipped sources fail the run.
	StrictSources bool
	Start         time.Time
	End           time.Time
}

// Failed returns the failed entries in resolution order.
func (r *Report) Failed() []retry.Outcome {
	var failed []retry.Outcome
	for _, e := range r.Entries {
		if !e.Success {
			failed = append(failed, e)
		}
	}
	return failed
}

// Success reports whether every attempted entry succeeded and the run
// wasn't interrupted.
func (r *Report) Success() bool {
	if r.Interrupted {
		return false
	}
	if r.StrictSources && len(r.Skipped) > 0 {
		return false
	}
	return len(r.Failed()) == 0
}

// Duration returns the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// RenderSummary writes the end-of-run summary. Output depends only on the
// report, never on completion order.
func RenderSummary(w io.Writer, r *Report) error {
	sr := ui.NewSummaryRenderer()
	var out string

	noun := "host"
	if r.Kind == action.KindSync {
		noun = "transfer"
	}

	failed := r.Failed()
	switch {
	case len(failed) > 0:
		items := make([]ui.Failure, len(failed))
		for i, e := range failed {
			items[i] = ui.Failure{Label: entryLabel(r.Kind, e), Message: errors.Summary(e.Err)}
		}
		header := "Failed hosts:"
		out += sr.Failures(header, items)
		out += fmt.Sprintf("%d of %d %s failed\n", len(failed), len(r.Entries),
			util.Pluralize(len(r.Entries), noun, noun+"s"))
	case len(r.Entries) == 0:
		out += sr.Notice(fmt.Sprintf("No %ss attempted", noun))
	case !r.Interrupted:
		out += sr.Success(fmt.Sprintf("All %d %s succeeded", len(r.Entries),
			util.Pluralize(len(r.Entries), noun, noun+"s")))
	}

	for _, src := range r.Skipped {
		out += sr.Notice(fmt.Sprintf("Skipped %s: source not found", src))
	}
	if r.Interrupted {
		missing := r.Planned - len(r.Entries)
		out += sr.Notice(fmt.Sprintf("Interrupted: %d %s not attempted", missing,
			util.Pluralize(missing, noun, noun+"s")))
	}

	_, err := io.WriteString(w, out)
	return err
}

func entryLabel(kind action.Kind, e retry.Outcome) string {
	if kind == action.KindSync {
		return fmt.Sprintf("%s (%s)", e.Host, e.Source)
	}
	return e.Host.String()
}
