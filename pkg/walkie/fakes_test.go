package walkie

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
	"github.com/groovydhruv/power-ups/pkg/storage"
)

// byteFormat makes one byte one millisecond of audio.
var byteFormat = pcm.Format{SampleRate: 1000, Channels: 1, Depth: 8}

// byteDecoder decodes any buffer of at least minBytes as byteFormat audio.
// fail, when set, can reject a buffer regardless of its size.
type byteDecoder struct {
	minBytes int
	fail     func(data []byte) bool

	mu    sync.Mutex
	calls int
}

func (d *byteDecoder) Decode(ctx context.Context, data []byte) (*pcm.Clip, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) < d.minBytes || (d.fail != nil && d.fail(data)) {
		return nil, errors.New("not yet")
	}
	return &pcm.Clip{Format: byteFormat, Data: data}, nil
}

func (d *byteDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type playCall struct {
	offset time.Duration
	end    time.Duration
}

// fakePlayer records every Play call. With hold set, Play blocks until
// ctx is done, like a clip that never ends.
type fakePlayer struct {
	hold bool

	mu      sync.Mutex
	calls   []playCall
	active  int
	maxLive int
	started chan playCall
}

func newFakePlayer(hold bool) *fakePlayer {
	return &fakePlayer{hold: hold, started: make(chan playCall, 64)}
}

func (p *fakePlayer) Play(ctx context.Context, clip *pcm.Clip, offset time.Duration) error {
	call := playCall{offset: offset, end: clip.Duration()}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.active++
	p.maxLive = max(p.maxLive, p.active)
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()
	select {
	case p.started <- call:
	default:
	}

	if p.hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (p *fakePlayer) Calls() []playCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playCall(nil), p.calls...)
}

func (p *fakePlayer) MaxLive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxLive
}

func (p *fakePlayer) waitStarted(t *testing.T) playCall {
	t.Helper()
	select {
	case c := <-p.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("player was not started")
		return playCall{}
	}
}

// fakeCapture hands out a fixed blob.
type fakeCapture struct {
	blob     *Blob
	startErr error

	mu      sync.Mutex
	starts  int
	stops   int
	running bool
}

func (c *fakeCapture) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.starts++
	c.running = true
	return nil
}

func (c *fakeCapture) Stop(context.Context) (*Blob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.running = false
	return c.blob, nil
}

func (c *fakeCapture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// outageStore fails every upload and serves nothing.
type outageStore struct{}

func (outageStore) Upload(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("store unavailable")
}

func (outageStore) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("store unavailable")
}

// eventLog collects a session's events in the background.
type eventLog struct {
	mu      sync.Mutex
	events  []Event
	changed chan struct{}
	done    chan struct{}
}

func collect(s *Session) *eventLog {
	l := &eventLog{changed: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for ev := range s.Events() {
			l.mu.Lock()
			l.events = append(l.events, ev)
			close(l.changed)
			l.changed = make(chan struct{})
			l.mu.Unlock()
		}
	}()
	return l
}

func (l *eventLog) All() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// wait returns the first event matching fn, waiting up to two seconds.
func (l *eventLog) wait(t *testing.T, what string, fn func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		l.mu.Lock()
		for _, ev := range l.events {
			if fn(ev) {
				l.mu.Unlock()
				return ev
			}
		}
		changed := l.changed
		l.mu.Unlock()
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for %s; got %v", what, l.All())
			return nil
		}
	}
}

// waitN waits until n events match fn.
func (l *eventLog) waitN(t *testing.T, what string, n int, fn func(Event) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		l.mu.Lock()
		got := 0
		for _, ev := range l.events {
			if fn(ev) {
				got++
			}
		}
		changed := l.changed
		l.mu.Unlock()
		if got >= n {
			return
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for %d x %s; got %v", n, what, l.All())
		}
	}
}

func (l *eventLog) count(fn func(Event) bool) int {
	n := 0
	for _, ev := range l.All() {
		if fn(ev) {
			n++
		}
	}
	return n
}

func isErr(target error) func(Event) bool {
	return func(ev Event) bool {
		e, ok := ev.(ErrorEvent)
		return ok && errors.Is(e, target)
	}
}

func isType[T Event](fn func(T) bool) func(Event) bool {
	return func(ev Event) bool {
		e, ok := ev.(T)
		return ok && (fn == nil || fn(e))
	}
}

// harness is a ready session talking to an in-process backend.
type harness struct {
	s      *Session
	server *PipeServer
	events *eventLog
	mem    *storage.Memory
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	server, client := NewPipe()
	mem := storage.NewMemory()
	opts = append([]Option{
		WithBlobStore(storage.NewBucket(mem, "memory://walkie")),
		WithDecoder(&byteDecoder{minBytes: 1}),
		WithPlayer(newFakePlayer(false)),
	}, opts...)
	s := NewSession(
		&StaticNegotiator{Grant: Grant{SessionID: "sess-1", Endpoint: "pipe://backend"}},
		&PipeDialer{Client: client},
		opts...,
	)
	h := &harness{s: s, server: server, events: collect(s), mem: mem}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.Start(ctx, StartRequest{UserID: "u1", TopicID: "t1"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.send(t, &Inbound{Type: TypeSetupComplete})
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.WaitReady(wctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	return h
}

func (h *harness) send(t *testing.T, msg *Inbound) {
	t.Helper()
	if err := h.server.Send(msg); err != nil {
		t.Fatalf("server send: %v", err)
	}
}

func (h *harness) start(t *testing.T, id string) {
	t.Helper()
	h.send(t, &Inbound{Type: TypeAudioStart, MessageID: id})
}

func (h *harness) chunk(t *testing.T, id string, data []byte) {
	t.Helper()
	h.send(t, &Inbound{Type: TypeAudioResponse, MessageID: id, Data: base64.StdEncoding.EncodeToString(data)})
}

func (h *harness) end(t *testing.T, id string) {
	t.Helper()
	h.send(t, &Inbound{Type: TypeAudioEnd, MessageID: id})
}

// waitChunk waits for the AudioChunk event carrying the n-th chunk of id.
func (h *harness) waitChunk(t *testing.T, id string, n int) AudioChunk {
	t.Helper()
	return h.events.wait(t, "audio_chunk", isType(func(e AudioChunk) bool {
		return e.MessageID == id && e.ChunkCount == n
	})).(AudioChunk)
}

func bytesOf(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
