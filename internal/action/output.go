package action

import (
	"io"
	"strings"
	"sync"
)

// tailLines is how many output lines a Result keeps.
const tailLines = 20

// lineSink serializes lines from a process's two streams onto one writer
// and remembers the most recent ones.
type lineSink struct {
	mu   sync.Mutex
	out  io.Writer
	tail []string
}

func newLineSink(out io.Writer) *lineSink {
	return &lineSink{out: out}
}

func (s *lineSink) emit(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = io.WriteString(s.out, line+"\n")

	if len(s.tail) == tailLines {
		copy(s.tail, s.tail[1:])
		s.tail = s.tail[:tailLines-1]
	}
	s.tail = append(s.tail, line)
}

// Tail returns the remembered lines joined with newlines.
func (s *lineSink) Tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.tail, "\n")
}

// lineWriter splits a byte stream into lines. Both \n and \r end a line
// because rsync --progress redraws with \r. Empty lines are dropped.
type lineWriter struct {
	sink *lineSink
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' || b == '\r' {
			w.flush()
			continue
		}
		w.buf = append(w.buf, b)
	}
	return len(p), nil
}

// flush emits whatever is left as a final line.
func (w *lineWriter) flush() {
	if len(w.buf) == 0 {
		return
	}
	line := strings.TrimRight(string(w.buf), " \t")
	w.buf = w.buf[:0]
	if line != "" {
		w.sink.emit(line)
	}
}
