package cli

import (
	"strings"

	"github.com/groovydhruv/power-ups/pkg/buffer"
)

// LogWriter implements io.Writer and keeps the most recent lines for TUI
// display. Each written line is also offered on Channel without blocking.
type LogWriter struct {
	max int
	buf *buffer.Buffer[string]
	ch  chan string
}

// NewLogWriter creates a log writer keeping at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		max: maxLines,
		buf: buffer.N[string](maxLines),
		ch:  make(chan string, 100),
	}
}

// Write implements io.Writer.
// Handles multi-line input by splitting on newlines.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		if err := w.buf.Add(line); err != nil {
			return 0, err
		}
		if over := w.buf.Len() - w.max; over > 0 {
			w.buf.Discard(over)
		}
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Bytes()
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
