package walkie

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/groovydhruv/power-ups/pkg/buffer"
	"github.com/groovydhruv/power-ups/pkg/history"
)

// Session is one conversation over one channel. All per-message state is
// owned by the Session; independent sessions share nothing.
//
// Reactions to inbound messages and user actions are serialized by the
// session mutex. Decoding, uploads and playback run outside it.
type Session struct {
	cfg        *sessionConfig
	negotiator Negotiator
	dialer     Dialer

	acc      *Accumulator
	prober   *Prober
	playback *Playback
	reg      *registry
	events   *buffer.Buffer[Event]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}
	ended  chan struct{}

	// gate covers the recording check up to the start of a unit, and
	// arming a recording up to stopping playback. It is taken before mu.
	gate sync.Mutex

	mu        sync.Mutex
	state     State
	grant     *Grant
	req       StartRequest
	ch        Channel
	receiving string
	rec       recorder
	closed    bool
}

// NewSession creates a session in the Initializing state. Call Start to
// connect it.
func NewSession(n Negotiator, d Dialer, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	s := &Session{
		cfg:        cfg,
		negotiator: n,
		dialer:     d,
		acc:        NewAccumulator(),
		reg:        newRegistry(),
		events:     buffer.N[Event](64),
		ready:      make(chan struct{}),
		ended:      make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.prober = NewProber(s.acc, cfg.decoder, cfg.maxProbeBytes, cfg.logger, cfg.metrics)
	s.playback = NewPlayback(PlaybackConfig{
		Player:  cfg.player,
		Prober:  s.prober,
		Decoder: cfg.decoder,
		Blobs:   cfg.blobs,
		URLOf:   s.reg.audioURL,
		Emit:    s.emit,
		Fail:    s.publish,
		Logger:  cfg.logger,
		Metrics: cfg.metrics,
	})
	return s
}

// Start negotiates the session and opens the channel. It returns once the
// channel is open; the Ready event follows when the backend confirms the
// setup. Use WaitReady to block until then.
func (s *Session) Start(ctx context.Context, req StartRequest) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return fmt.Errorf("start: %w", ErrClosed)
	case s.state != StateInitializing || s.grant != nil:
		s.mu.Unlock()
		return s.cfg.logger.Errorf("start: session already started")
	}
	s.req = req
	s.mu.Unlock()

	grant, err := s.negotiator.StartSession(ctx, req)
	if err != nil {
		return s.fail(fmt.Errorf("%w: negotiate: %w", ErrConnectionFailure, err))
	}

	s.mu.Lock()
	s.grant = grant
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, s.cfg.connectTimeout)
	ch, err := s.dialer.Dial(dctx, grant.Endpoint)
	timedOut := errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err != nil {
		if timedOut {
			return s.fail(fmt.Errorf("%w after %v: %w", ErrConnectTimeout, s.cfg.connectTimeout, err))
		}
		return s.fail(fmt.Errorf("%w: dial %s: %w", ErrConnectionFailure, grant.Endpoint, err))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ch.Close()
		return fmt.Errorf("start: %w", ErrClosed)
	}
	s.ch = ch
	s.wg.Add(1)
	s.mu.Unlock()

	s.cfg.logger.InfoPrintf("session %s connected to %s", grant.SessionID, grant.Endpoint)
	go s.readLoop(ch)
	return nil
}

// fail moves the session to Errored and publishes err.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	if !s.closed {
		s.setStateLocked(StateErrored)
	}
	s.mu.Unlock()
	s.publish(err)
	return err
}

// WaitReady blocks until the session is Ready. It fails if the session
// errors or closes first.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.ended:
		s.mu.Lock()
		st := s.state
		s.mu.Unlock()
		if st == StateClosed {
			return fmt.Errorf("wait ready: %w", ErrClosed)
		}
		return fmt.Errorf("wait ready: %w", ErrConnectionFailure)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setStateLocked must be called with s.mu held.
func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	prev := s.state
	s.state = st
	s.cfg.logger.DebugPrintf("session state %s -> %s", prev, st)
	switch st {
	case StateReady:
		close(s.ready)
	case StateErrored, StateClosed:
		if prev != StateErrored && prev != StateClosed {
			close(s.ended)
		}
	}
	s.emit(StateChange{State: st})
}

func (s *Session) readLoop(ch Channel) {
	defer s.wg.Done()
	for msg, err := range ch.Messages() {
		if err != nil {
			s.channelLost(err)
			return
		}
		s.handle(msg)
	}
	s.channelLost(nil)
}

func (s *Session) channelLost(err error) {
	s.mu.Lock()
	if s.closed || (s.state != StateConnecting && s.state != StateReady) {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateErrored)
	cut := s.receiving
	s.receiving = ""
	s.mu.Unlock()

	if cut != "" {
		s.truncate(cut)
	}
	if err == nil {
		err = errors.New("channel closed by peer")
	}
	s.publish(fmt.Errorf("%w: %w", ErrConnectionFailure, err))
}

// truncate freezes a message whose stream was cut off. It keeps what
// arrived but is not uploaded.
func (s *Session) truncate(id string) {
	if err := s.acc.Finalize(id); err != nil {
		return
	}
	snap, _ := s.acc.Snapshot(id)
	duration := s.messageDuration(&Inbound{}, id, snap.ChunkCount)
	s.reg.update(id, func(m *message) { m.duration = duration })
	s.record(id)
	s.cfg.logger.WarnPrintf("message %s cut short after %d chunks", id, snap.ChunkCount)
}

// Replay plays message id from the beginning, following it while it is
// still receiving. Any other playback is stopped first.
func (s *Session) Replay(ctx context.Context, id string) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	closed, recording := s.closed, s.rec.state != RecordIdle
	s.mu.Unlock()

	var err error
	switch {
	case closed:
		err = fmt.Errorf("replay %s: %w", id, ErrClosed)
	case recording:
		err = fmt.Errorf("replay %s: %w", id, ErrBusyRecording)
	case !s.acc.Has(id):
		err = fmt.Errorf("replay: %w: %s", ErrUnknownMessage, id)
	default:
		_, err = s.playback.Play(ctx, MessageSource{ID: id})
	}
	if err != nil {
		s.publish(err)
	}
	return err
}

// PlayURL plays a durable copy once. Any other playback is stopped first.
func (s *Session) PlayURL(ctx context.Context, url string) (<-chan struct{}, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	closed, recording := s.closed, s.rec.state != RecordIdle
	s.mu.Unlock()

	var (
		done <-chan struct{}
		err  error
	)
	switch {
	case closed:
		err = fmt.Errorf("play %s: %w", url, ErrClosed)
	case recording:
		err = fmt.Errorf("play %s: %w", url, ErrBusyRecording)
	default:
		done, err = s.playback.Play(ctx, URLSource{URL: url})
	}
	if err != nil {
		s.publish(err)
	}
	return done, err
}

// StopPlayback stops whatever is playing. It is a no-op when nothing is.
func (s *Session) StopPlayback() {
	s.playback.Stop()
}

// WaitPlayback blocks until nothing is playing.
func (s *Session) WaitPlayback(ctx context.Context) error {
	return s.playback.Wait(ctx)
}

// Playing returns the id of the message being played, if any.
func (s *Session) Playing() (string, bool) {
	return s.playback.Active()
}

// Events returns the session's event stream. It ends after Close. The
// stream is meant for a single consumer.
func (s *Session) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			ev, err := s.events.Next()
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

func (s *Session) emit(ev Event) {
	if err := s.events.Add(ev); err != nil {
		s.cfg.logger.DebugPrintf("dropping %s event after close", ev.EventType())
	}
}

// publish reports a failure on the event stream.
func (s *Session) publish(err error) {
	s.cfg.logger.WarnPrintf("%v", err)
	s.emit(ErrorEvent{Err: err})
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Grant returns the negotiated grant, or nil before Start.
func (s *Session) Grant() *Grant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grant
}

// RecordState returns the recorder state.
func (s *Session) RecordState() RecordState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.state
}

// Message returns a snapshot of one message.
func (s *Session) Message(id string) (MessageInfo, bool) {
	m, ok := s.reg.get(id)
	if !ok {
		return MessageInfo{}, false
	}
	info := MessageInfo{
		ID:        m.id,
		Direction: m.direction,
		Playable:  m.playable,
		Duration:  m.duration,
		AudioURL:  m.audioURL,
		CreatedAt: m.createdAt,
	}
	if snap, err := s.acc.Snapshot(id); err == nil {
		info.Status = snap.Status
		info.ChunkCount = snap.ChunkCount
		info.Size = len(snap.Data)
	}
	return info, true
}

// Messages returns snapshots of every message in creation order.
func (s *Session) Messages() []MessageInfo {
	ids := s.reg.ids()
	out := make([]MessageInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := s.Message(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// Close ends the session: it stops recording and playback, closes the
// channel, waits for background work and ends the event stream. In-flight
// uploads are cancelled. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ch := s.ch
	capturing := s.rec.state == RecordCapturing || s.rec.state == RecordArmed
	if s.rec.timer != nil {
		s.rec.timer.Stop()
	}
	s.mu.Unlock()

	if capturing && s.cfg.capture != nil {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if _, err := s.cfg.capture.Stop(sctx); err != nil {
			s.cfg.logger.DebugPrintf("stop capture on close: %v", err)
		}
		cancel()
	}
	s.playback.Close()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.rec.state = RecordIdle
	s.setStateLocked(StateClosed)
	s.mu.Unlock()
	s.events.CloseWrite()
	return err
}

// record writes the current metadata of id to the history store.
func (s *Session) record(id string) {
	if s.cfg.history == nil {
		return
	}
	info, ok := s.Message(id)
	if !ok {
		return
	}
	s.mu.Lock()
	sid := ""
	if s.grant != nil {
		sid = s.grant.SessionID
	}
	s.mu.Unlock()
	if sid == "" {
		return
	}
	err := s.cfg.history.Put(context.WithoutCancel(s.ctx), &history.Record{
		ID:         info.ID,
		SessionID:  sid,
		Direction:  info.Direction.String(),
		Status:     info.Status.String(),
		ChunkCount: info.ChunkCount,
		Duration:   info.Duration,
		AudioURL:   info.AudioURL,
		CreatedAt:  info.CreatedAt,
	})
	if err != nil {
		s.cfg.logger.WarnPrintf("history %s: %v", id, err)
	}
}
