package walkie

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Source is what a playback unit plays: a MessageSource or a URLSource.
type Source interface {
	kind() string
}

// MessageSource plays a message from the accumulator, following it while
// it is still receiving.
type MessageSource struct {
	ID string
}

// URLSource fetches, decodes and plays a durable copy once.
type URLSource struct {
	URL string
}

func (MessageSource) kind() string { return "message" }
func (URLSource) kind() string     { return "url" }

// Playback owns the audio output. At most one unit plays at a time;
// starting a unit stops the active one first and waits for it to finish.
type Playback struct {
	player  Player
	prober  *Prober
	dec     Decoder
	blobs   BlobStore
	urlOf   func(id string) string
	emit    func(Event)
	fail    func(error)
	logger  Logger
	metrics *Metrics

	base   context.Context
	cancel context.CancelFunc

	opMu   sync.Mutex
	mu     sync.Mutex
	active *unit
	closed bool
}

// unit is one playback in progress.
type unit struct {
	source Source
	cancel context.CancelFunc
	done   chan struct{}

	// finished is set under Playback.mu once the unit ended on its own
	// or was stopped.
	finished bool

	mu     sync.Mutex
	offset time.Duration
}

func (u *unit) messageID() string {
	if s, ok := u.source.(MessageSource); ok {
		return s.ID
	}
	return ""
}

func (u *unit) setOffset(d time.Duration) {
	u.mu.Lock()
	u.offset = d
	u.mu.Unlock()
}

// Offset returns how far into the message the unit has played.
func (u *unit) Offset() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.offset
}

// PlaybackConfig wires a Playback controller.
type PlaybackConfig struct {
	Player  Player
	Prober  *Prober
	Decoder Decoder
	Blobs   BlobStore
	// URLOf returns the durable URL of a message, or "".
	URLOf func(id string) string
	// Emit receives ReplayStart, ReplayComplete and PlaybackStopped.
	Emit func(Event)
	// Fail receives errors that end a unit abnormally.
	Fail    func(error)
	Logger  Logger
	Metrics *Metrics
}

// NewPlayback returns an idle controller.
func NewPlayback(cfg PlaybackConfig) *Playback {
	p := &Playback{
		player:  cfg.Player,
		prober:  cfg.Prober,
		dec:     cfg.Decoder,
		blobs:   cfg.Blobs,
		urlOf:   cfg.URLOf,
		emit:    cfg.Emit,
		fail:    cfg.Fail,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if p.urlOf == nil {
		p.urlOf = func(string) string { return "" }
	}
	if p.emit == nil {
		p.emit = func(Event) {}
	}
	if p.fail == nil {
		p.fail = func(error) {}
	}
	if p.logger == nil {
		p.logger = DefaultLogger()
	}
	p.base, p.cancel = context.WithCancel(context.Background())
	return p
}

// Play starts a unit for src and returns a channel closed when the unit
// ends. Any active unit is stopped first. Playing the message that is
// already playing returns ErrReplayInProgress.
//
// The unit runs until it finishes, Stop is called, the controller is
// closed or ctx is cancelled.
func (p *Playback) Play(ctx context.Context, src Source) (<-chan struct{}, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("playback: %w", ErrClosed)
	}
	active := p.active
	p.mu.Unlock()

	if active != nil {
		if ms, ok := src.(MessageSource); ok && active.messageID() == ms.ID {
			return nil, fmt.Errorf("%w: %s", ErrReplayInProgress, ms.ID)
		}
		p.stopLocked(active)
	}

	uctx, cancel := context.WithCancel(p.base)
	stopAfter := context.AfterFunc(ctx, cancel)
	u := &unit{source: src, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.active = u
	p.mu.Unlock()

	p.metrics.playback(src.kind())
	if id := u.messageID(); id != "" {
		p.emit(ReplayStart{MessageID: id})
	}
	go func() {
		defer close(u.done)
		defer stopAfter()
		defer cancel()

		var err error
		switch s := src.(type) {
		case MessageSource:
			err = p.replay(uctx, u, s.ID)
		case URLSource:
			err = p.playURL(uctx, s.URL)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.WarnPrintf("playback of %s %v failed: %v", src.kind(), src, err)
			p.fail(err)
		}

		p.mu.Lock()
		u.finished = true
		if p.active == u {
			p.active = nil
		}
		p.mu.Unlock()
		if id := u.messageID(); id != "" {
			p.emit(ReplayComplete{MessageID: id})
		}
	}()
	return u.done, nil
}

// Stop halts the active unit and waits for it to end. It emits
// PlaybackStopped if a unit was active and does nothing otherwise.
func (p *Playback) Stop() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active == nil {
		return
	}
	p.stopLocked(active)
}

// stopLocked must be called with opMu held. A unit that already finished
// on its own is only waited for.
func (p *Playback) stopLocked(u *unit) {
	p.mu.Lock()
	live := !u.finished
	p.mu.Unlock()

	u.cancel()
	<-u.done
	if live {
		p.emit(PlaybackStopped{})
	}
}

// Active returns the message id of the active unit, if any.
func (p *Playback) Active() (id string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return "", false
	}
	return p.active.messageID(), true
}

// Wait blocks until no unit is active or ctx is done.
func (p *Playback) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		u := p.active
		p.mu.Unlock()
		if u == nil {
			return nil
		}
		select {
		case <-u.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the active unit and rejects further Play calls.
func (p *Playback) Close() error {
	p.Stop()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	return nil
}

func (p *Playback) playURL(ctx context.Context, url string) error {
	if p.blobs == nil {
		return fmt.Errorf("playback: fetch %s: no blob store", url)
	}
	data, err := p.blobs.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("playback: fetch %s: %w", url, err)
	}
	clip, err := p.dec.Decode(ctx, data)
	if err != nil {
		return fmt.Errorf("playback: %w: %s: %v", ErrNotDecodable, url, err)
	}
	return p.player.Play(ctx, clip, 0)
}
