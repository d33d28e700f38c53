package fleet

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/retry"
	"github.com/rileyhilliard/keyfleet/internal/ui"
	"github.com/rileyhilliard/keyfleet/internal/util"
)

// maxBlockSize caps a buffered host block (1MB per host).
const maxBlockSize = 1 << 20

// lockedWriter makes each Write atomic with respect to other writers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// hostBlock collects one job's lines. When buffered, nothing reaches the
// terminal until flush, which writes the whole block in one call.
type hostBlock struct {
	out      *lockedWriter
	log      io.Writer
	buffered bool

	buf       bytes.Buffer
	truncated bool
}

func newHostBlock(out *lockedWriter, log io.Writer, buffered bool) *hostBlock {
	return &hostBlock{out: out, log: log, buffered: buffered}
}

// Write receives one progress line per call.
func (b *hostBlock) Write(p []byte) (int, error) {
	_, _ = b.log.Write(p)
	b.emit(append([]byte("  "), p...))
	return len(p), nil
}

func (b *hostBlock) line(format string, args ...interface{}) {
	b.emit([]byte(fmt.Sprintf(format, args...) + "\n"))
}

func (b *hostBlock) emit(p []byte) {
	if !b.buffered {
		_, _ = b.out.Write(p)
		return
	}
	if b.buf.Len()+len(p) > maxBlockSize {
		if !b.truncated {
			b.buf.WriteString("  ... output truncated (exceeded 1MB) ...\n")
			b.truncated = true
		}
		return
	}
	b.buf.Write(p)
}

func (b *hostBlock) flush() {
	if b.buffered && b.buf.Len() > 0 {
		_, _ = b.out.Write(b.buf.Bytes())
		b.buf.Reset()
	}
}

// header announces a job.
func (b *hostBlock) header(label string) {
	b.line("%s %s", ui.InfoStyle().Render(ui.SymbolProgress), label)
}

// notStarted drops a buffered block, or closes a streamed one, for a job
// that cancellation stopped before its first attempt.
func (b *hostBlock) notStarted(label string) {
	if b.buffered {
		b.buf.Reset()
		return
	}
	b.line("%s %s not started (interrupted)", ui.MutedStyle().Render(ui.SymbolSkipped), label)
}

// result closes a job with its outcome.
func (b *hostBlock) result(label string, o retry.Outcome, d time.Duration) {
	n := len(o.Attempts)
	if o.Success {
		b.line("%s %s succeeded (attempt %d, %.1fs)",
			ui.SuccessStyle().Render(ui.SymbolSuccess), label, n, d.Seconds())
		return
	}
	b.line("%s %s failed after %d %s: %s",
		ui.ErrorStyle().Render(ui.SymbolFail), label, n,
		util.Pluralize(n, "attempt", "attempts"), errors.Summary(o.Err))
}
