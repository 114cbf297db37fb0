package pcm

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameDuration is the amount of audio a Player hands to its writer
// at a time.
const DefaultFrameDuration = 20 * time.Millisecond

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithFrameDuration sets the size of each written frame.
func WithFrameDuration(d time.Duration) PlayerOption {
	return func(p *Player) {
		if d > 0 {
			p.frame = d
		}
	}
}

// WithRealtime makes the player sleep for the duration of every frame it
// writes, so that playback of a clip takes as long as the clip.
func WithRealtime(on bool) PlayerOption {
	return func(p *Player) {
		p.realtime = on
	}
}

// WithGain sets the initial gain.
func WithGain(g float32) PlayerOption {
	return func(p *Player) {
		p.gain.store(g)
	}
}

// Player plays clips into a Writer frame by frame. Only one Play runs at a
// time; a second call waits for the first to return.
type Player struct {
	out      Writer
	frame    time.Duration
	realtime bool
	gain     gain

	mu sync.Mutex
}

// NewPlayer returns a Player writing to out.
func NewPlayer(out Writer, opts ...PlayerOption) *Player {
	p := &Player{
		out:   out,
		frame: DefaultFrameDuration,
	}
	p.gain.store(1)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetGain changes the volume of frames written from now on.
func (p *Player) SetGain(g float32) {
	p.gain.store(g)
}

// Gain returns the current gain.
func (p *Player) Gain() float32 {
	return p.gain.load()
}

// Play writes clip from offset to its end. The context is checked before
// every frame; on cancellation Play returns ctx.Err() without writing
// anything further.
func (p *Player) Play(ctx context.Context, clip *Clip, offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data := clip.Slice(offset, clip.Duration())
	if len(data) == 0 {
		return ctx.Err()
	}
	f := clip.Format
	size := int(f.BytesInDuration(p.frame))
	size -= size % f.BlockAlign()
	if size <= 0 {
		size = f.BlockAlign()
	}

	var timer *time.Timer
	if p.realtime {
		timer = time.NewTimer(0)
		defer timer.Stop()
		<-timer.C
	}
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(size, len(data))
		frame := p.gain.apply(f, data[:n])
		data = data[n:]
		if err := p.out.Write(f.DataChunk(frame)); err != nil {
			return err
		}
		if timer != nil {
			timer.Reset(f.Duration(int64(n)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}
