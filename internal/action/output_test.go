package action

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type writeRecorder struct {
	writes []string
}

func (w *writeRecorder) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func TestLineWriter_SplitsOnCRAndLF(t *testing.T) {
	rec := &writeRecorder{}
	sink := newLineSink(rec)
	w := &lineWriter{sink: sink}

	fmt.Fprint(w, "sending incremental file list\n")
	fmt.Fprint(w, "conf/a.yaml\r  1,024 50%\r  2,048 100%\r\n")
	fmt.Fprint(w, "\n\npartial")
	fmt.Fprint(w, " line")
	w.flush()

	assert.Equal(t, []string{
		"sending incremental file list\n",
		"conf/a.yaml\n",
		"  1,024 50%\n",
		"  2,048 100%\n",
		"partial line\n",
	}, rec.writes, "one Write per line, blank lines dropped")
}

func TestLineSink_TailKeepsLastLines(t *testing.T) {
	var buf bytes.Buffer
	sink := newLineSink(&buf)

	for i := 1; i <= tailLines+5; i++ {
		sink.emit(fmt.Sprintf("line %d", i))
	}

	tail := strings.Split(sink.Tail(), "\n")
	assert.Len(t, tail, tailLines)
	assert.Equal(t, "line 6", tail[0])
	assert.Equal(t, fmt.Sprintf("line %d", tailLines+5), tail[len(tail)-1])
	assert.Equal(t, tailLines+5, strings.Count(buf.String(), "\n"))
}

func TestLineWriter_FlushEmpty(t *testing.T) {
	rec := &writeRecorder{}
	w := &lineWriter{sink: newLineSink(rec)}
	w.flush()
	fmt.Fprint(w, "   \n")
	assert.Empty(t, rec.writes)
}
