package walkie

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
)

// DefaultMaxProbeBytes bounds speculative decoding. At 24 kHz mono 16-bit
// it is a little under six minutes of audio.
const DefaultMaxProbeBytes = 16 << 20

// Prober decides when a growing buffer first becomes playable.
//
// Every probe decodes the whole buffer, so the cost of a probe grows with
// the message. Buffers larger than the probe limit are not probed; they
// can still be decoded on demand for playback.
type Prober struct {
	acc      *Accumulator
	dec      Decoder
	maxBytes int
	logger   Logger
	metrics  *Metrics

	mu     sync.Mutex
	states map[string]*probeState
}

type probeState struct {
	playable bool
	// clip is the most recent successful decode and size the buffer length
	// it was decoded from.
	clip *pcm.Clip
	size int
}

// ProbeResult is the outcome of a Probe.
type ProbeResult struct {
	// Playable is the sticky flag: true once any probe succeeded.
	Playable bool
	// FirstPlayable is true only for the probe that set Playable.
	FirstPlayable bool
	// Clip is the decoded audio, nil if this probe did not decode.
	Clip *pcm.Clip
}

// NewProber returns a Prober reading buffers from acc.
func NewProber(acc *Accumulator, dec Decoder, maxBytes int, logger Logger, metrics *Metrics) *Prober {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProbeBytes
	}
	if logger == nil {
		logger = DefaultLogger()
	}
	return &Prober{
		acc:      acc,
		dec:      dec,
		maxBytes: maxBytes,
		logger:   logger,
		metrics:  metrics,
		states:   make(map[string]*probeState),
	}
}

func (p *Prober) state(id string) *probeState {
	st, ok := p.states[id]
	if !ok {
		st = &probeState{}
		p.states[id] = st
	}
	return st
}

// Probe attempts to decode the current buffer of id. A failed decode is not
// an error; the only error is for an unknown message.
func (p *Prober) Probe(ctx context.Context, id string) (ProbeResult, error) {
	snap, err := p.acc.Snapshot(id)
	if err != nil {
		return ProbeResult{}, err
	}
	if len(snap.Data) > p.maxBytes {
		p.metrics.decode("skipped", 0)
		return ProbeResult{Playable: p.Playable(id)}, nil
	}
	clip, err := p.decode(ctx, id, snap.Data)
	if err != nil {
		p.logger.DebugPrintf("probe %s at %d bytes: %v", id, len(snap.Data), err)
		return ProbeResult{Playable: p.Playable(id)}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state(id)
	res := ProbeResult{Clip: clip, FirstPlayable: !st.playable}
	st.playable = true
	res.Playable = true
	return res, nil
}

// Playable reports the sticky playable flag of id.
func (p *Prober) Playable(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[id]
	return ok && st.playable
}

// Decode returns the decoded audio of the current buffer together with the
// snapshot it was decoded from. When the buffer has not grown since the
// last successful decode the cached clip is returned. A buffer that cannot
// be decoded yields an error wrapping ErrNotDecodable and a valid snapshot.
func (p *Prober) Decode(ctx context.Context, id string) (*pcm.Clip, Snapshot, error) {
	snap, err := p.acc.Snapshot(id)
	if err != nil {
		return nil, snap, err
	}
	p.mu.Lock()
	if st, ok := p.states[id]; ok && st.clip != nil && st.size == len(snap.Data) {
		clip := st.clip
		p.mu.Unlock()
		return clip, snap, nil
	}
	p.mu.Unlock()

	clip, err := p.decode(ctx, id, snap.Data)
	return clip, snap, err
}

func (p *Prober) decode(ctx context.Context, id string, data []byte) (*pcm.Clip, error) {
	if len(data) == 0 {
		p.metrics.decode("not_yet", 0)
		return nil, fmt.Errorf("%w: empty buffer", ErrNotDecodable)
	}
	start := time.Now()
	clip, err := p.dec.Decode(ctx, data)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		p.metrics.decode("not_yet", elapsed)
		return nil, fmt.Errorf("%w: %v", ErrNotDecodable, err)
	}
	if clip == nil || clip.Duration() == 0 {
		p.metrics.decode("not_yet", elapsed)
		return nil, fmt.Errorf("%w: no audio", ErrNotDecodable)
	}
	p.metrics.decode("ok", elapsed)

	p.mu.Lock()
	st := p.state(id)
	if len(data) >= st.size {
		st.clip, st.size = clip, len(data)
	}
	p.mu.Unlock()
	return clip, nil
}
