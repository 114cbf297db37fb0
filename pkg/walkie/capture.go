package walkie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
	"github.com/groovydhruv/power-ups/pkg/audio/wav"
	"github.com/groovydhruv/power-ups/pkg/buffer"
)

// ReaderCapture records raw PCM from an io.Reader and hands it out as a
// WAV blob.
type ReaderCapture struct {
	// Open returns the microphone stream for one recording. Errors are
	// reported as ErrPermissionDenied.
	Open func(ctx context.Context) (io.Reader, error)
	// Format describes the stream. Zero means pcm.L16Mono16K.
	Format pcm.Format
	// Realtime paces reads at the stream's bitrate. Set it for sources
	// that produce data faster than real time, such as files.
	Realtime bool

	mu     sync.Mutex
	gen    int
	buf    *buffer.Buffer[byte]
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start implements Capture.
func (c *ReaderCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("capture: already started")
	}
	if c.Open == nil {
		return fmt.Errorf("%w: capture: no input", ErrPermissionDenied)
	}
	r, err := c.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: capture: %w", ErrPermissionDenied, err)
	}

	f := c.format()
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.gen++
	c.buf = buffer.N[byte](int(f.BytesInDuration(10 * time.Second)))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.err = nil
	go c.run(rctx, c.gen, r, f, c.buf, c.done)
	return nil
}

func (c *ReaderCapture) format() pcm.Format {
	if c.Format.Valid() {
		return c.Format
	}
	return pcm.L16Mono16K
}

func (c *ReaderCapture) run(ctx context.Context, gen int, r io.Reader, f pcm.Format, buf *buffer.Buffer[byte], done chan struct{}) {
	defer close(done)
	frame := 20 * time.Millisecond
	w := pcm.WriteFunc(func(chunk pcm.Chunk) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := chunk.WriteTo(buf); err != nil {
			return err
		}
		if c.Realtime {
			t := time.NewTimer(f.Duration(chunk.Len()))
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
		return nil
	})
	err := pcm.Copy(w, &ctxReader{ctx: ctx, r: r, max: int(f.BytesInDuration(frame))}, f)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.mu.Lock()
		if c.gen == gen {
			c.err = err
		}
		c.mu.Unlock()
	}
}

// Stop implements Capture. The blob holds everything read since Start.
func (c *ReaderCapture) Stop(ctx context.Context) (*Blob, error) {
	c.mu.Lock()
	cancel, done, buf := c.cancel, c.done, c.buf
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil, nil
	}
	cancel()
	// A blocked Read can outlive Stop; the copy stops at the next chunk.
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
	}
	buf.CloseWrite()

	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	data := buf.Bytes()
	f := c.format()
	data = data[:len(data)-len(data)%f.BlockAlign()]
	if len(data) == 0 {
		return nil, nil
	}
	return &Blob{
		Data:     wav.Encode(f, data),
		MIMEType: wav.MIMEType,
		Duration: f.Duration(int64(len(data))),
	}, nil
}

// ctxReader stops at ctx cancellation and caps each read so the copy loop
// sees small chunks.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
	max int
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if r.max > 0 && len(p) > r.max {
		p = p[:r.max]
	}
	return r.r.Read(p)
}

// ToneReader returns an endless 16-bit sine wave in format f. It stands
// in for a microphone in demos.
func ToneReader(f pcm.Format, freq float64) io.Reader {
	return &toneReader{period: f.Tone(freq, time.Second)}
}

type toneReader struct {
	period []byte
	pos    int
}

func (t *toneReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		c := copy(p[n:], t.period[t.pos:])
		n += c
		t.pos = (t.pos + c) % len(t.period)
	}
	return n, nil
}

var _ Capture = (*ReaderCapture)(nil)
