// Package runlog keeps the append-only audit log of one keyfleet run.
//
// Every attempt, its outcome and each line of external process output is
// written as one JSON object per line. Writes from concurrent host workers
// are serialized by the core, so lines never interleave.
package runlog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// timestampLayout is the suffix of every run log name.
const timestampLayout = "20060102-150405"

// maxSameSecond bounds the -N suffixes tried when runs share a timestamp.
const maxSameSecond = 100

// Sink writes run events. A nil *Sink discards everything.
type Sink struct {
	log  *zap.Logger
	file *os.File
	path string
}

// Open creates <dir>/<command>-<timestamp>.log and returns a sink writing to it.
// A run starting in the same second as an earlier one gets a -1, -2, ...
// suffix; an existing log is never appended to.
func Open(dir, command string, now time.Time) (*Sink, error) {
	dir, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create log directory "+dir,
			"Check your permissions, or point logs.dir elsewhere")
	}

	f, path, err := createUnique(dir, fmt.Sprintf("%s-%s", command, now.Format(timestampLayout)))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't open run log "+path,
			"Check your permissions, or point logs.dir elsewhere")
	}

	s := New(f)
	s.file = f
	s.path = path
	s.Event("run_start", zap.String("command", command))
	return s, nil
}

func createUnique(dir, stem string) (*os.File, string, error) {
	path := filepath.Join(dir, stem+".log")
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil || !os.IsExist(err) || n > maxSameSecond {
			return f, path, err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.log", stem, n))
	}
}

// New returns a sink writing JSON lines to w.
func New(w io.Writer) *Sink {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(enc),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	)
	return &Sink{log: zap.New(core)}
}

// Path returns the log file path, or "" when the sink isn't file-backed.
func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Logger exposes the underlying zap logger.
func (s *Sink) Logger() *zap.Logger {
	if s == nil {
		return zap.NewNop()
	}
	return s.log
}

// Event records a free-form event.
func (s *Sink) Event(msg string, fields ...zap.Field) {
	if s == nil {
		return
	}
	s.log.Info(msg, fields...)
}

// Attempt records the start of one attempt against a host.
func (s *Sink) Attempt(host, source, kind string, n int) {
	s.Event("attempt",
		zap.String("host", host),
		zap.String("source", source),
		zap.String("kind", kind),
		zap.Int("attempt", n),
	)
}

// AttemptResult records how an attempt ended.
func (s *Sink) AttemptResult(host, source string, n int, status string, err error, d time.Duration) {
	if s == nil {
		return
	}
	fields := []zap.Field{
		zap.String("host", host),
		zap.String("source", source),
		zap.Int("attempt", n),
		zap.String("status", status),
		zap.Duration("duration", d),
	}
	if err != nil {
		fields = append(fields, zap.String("error", errors.Summary(err)))
		s.log.Warn("attempt_result", fields...)
		return
	}
	s.log.Info("attempt_result", fields...)
}

// Writer returns a writer that records each line written to it as an
// output event for host.
func (s *Sink) Writer(host, source, stream string) io.Writer {
	if s == nil {
		return io.Discard
	}
	return &eventWriter{
		log: s.log.With(
			zap.String("host", host),
			zap.String("source", source),
			zap.String("stream", stream),
		),
	}
}

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	_ = s.log.Sync()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

type eventWriter struct {
	mu  sync.Mutex
	log *zap.Logger
	buf []byte
}

func (w *eventWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:i]), "\r")
		w.buf = w.buf[i+1:]
		if line != "" {
			w.log.Info("output", zap.String("line", line))
		}
	}
	return len(p), nil
}

func expandHome(dir string) (string, error) {
	if dir == "" || dir[0] != '~' {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't determine home directory",
			"Check your environment configuration.")
	}
	return filepath.Join(home, dir[1:]), nil
}
