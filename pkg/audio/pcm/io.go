package pcm

import (
	"errors"
	"io"
	"sync"
	"time"
)

// Writer is a writer for chunks of audio data.
type Writer interface {
	Write(Chunk) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc is a function that implements the Writer interface.
type WriteFunc func(Chunk) error

// Write implements the Writer interface.
func (f WriteFunc) Write(c Chunk) error {
	return f(c)
}

// Discard is a Writer that discards all written chunks.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write(Chunk) error {
	return nil
}

// ChunkWriter wraps an io.Writer to provide a pcm.Writer interface.
// All chunks are written to the underlying writer using WriteTo.
func ChunkWriter(w io.Writer) Writer {
	return &chunkWriter{w: w}
}

type chunkWriter struct {
	w io.Writer
}

func (w *chunkWriter) Write(c Chunk) error {
	_, err := c.WriteTo(w.w)
	return err
}

// Copy copies audio data from reader r to writer w using the specified format.
// It reads data in chunks of at least 20ms duration and writes them as DataChunks.
// Returns nil on EOF, or any other error encountered during reading or writing.
func Copy(w Writer, r io.Reader, format Format) error {
	minChunk := int(format.BytesInDuration(20 * time.Millisecond))
	buf := make([]byte, 10*minChunk)
	for {
		n, err := io.ReadAtLeast(r, buf, minChunk)
		if n > 0 {
			if err := w.Write(format.DataChunk(buf[:n])); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
	}
}

// Collector is a Writer that keeps everything written to it in memory.
type Collector struct {
	mu     sync.Mutex
	data   []byte
	chunks int
}

// Write implements Writer.
func (c *Collector) Write(chunk Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks++
	_, err := chunk.WriteTo(collectorSink{c})
	return err
}

// Bytes returns a copy of the collected audio.
func (c *Collector) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.data...)
}

// Chunks returns how many chunks were written.
func (c *Collector) Chunks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks
}

type collectorSink struct{ c *Collector }

func (s collectorSink) Write(p []byte) (int, error) {
	s.c.data = append(s.c.data, p...)
	return len(p), nil
}
