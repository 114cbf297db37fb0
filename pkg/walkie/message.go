package walkie

import (
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateInitializing State = iota
	StateConnecting
	StateReady
	StateClosed
	StateErrored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// RecordState is the state of the recording pipeline.
type RecordState int

const (
	RecordIdle RecordState = iota
	RecordArmed
	RecordCapturing
	RecordFinalizing
)

// String returns the string representation of the state.
func (s RecordState) String() string {
	switch s {
	case RecordIdle:
		return "idle"
	case RecordArmed:
		return "armed"
	case RecordCapturing:
		return "capturing"
	case RecordFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s RecordState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Direction tells who produced a message.
type Direction int

const (
	// Inbound messages are streamed by the backend.
	Inbound Direction = iota
	// Outbound messages are recorded locally and sent to the backend.
	Outbound
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// MarshalJSON implements json.Marshaler.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Status is the status of a message buffer.
type Status int

const (
	// Receiving buffers still accept chunks.
	Receiving Status = iota
	// Complete buffers are immutable.
	Complete
)

// String returns the string representation of the status.
func (s Status) String() string {
	if s == Complete {
		return "complete"
	}
	return "receiving"
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Stage is the lifecycle stage of a message. It is one of StageStarting,
// StageStreaming or StageComplete.
type Stage interface {
	stage()
}

// StageStarting is a message that has been opened but holds no bytes.
type StageStarting struct{}

// StageStreaming is a message that is receiving chunks.
type StageStreaming struct {
	ChunkCount int
	Playable   bool
}

// StageComplete is a finalized message. AudioURL is empty until (or
// unless) the upload succeeds.
type StageComplete struct {
	Duration time.Duration
	AudioURL string
}

func (StageStarting) stage()  {}
func (StageStreaming) stage() {}
func (StageComplete) stage()  {}

// MessageInfo is a read-only snapshot of a message.
type MessageInfo struct {
	ID         string        `json:"id"`
	Direction  Direction     `json:"direction"`
	Status     Status        `json:"status"`
	ChunkCount int           `json:"chunk_count"`
	Size       int           `json:"size"`
	Playable   bool          `json:"playable"`
	Duration   time.Duration `json:"duration"`
	AudioURL   string        `json:"audio_url,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Stage returns the message's lifecycle stage.
func (m MessageInfo) Stage() Stage {
	switch {
	case m.Status == Complete:
		return StageComplete{Duration: m.Duration, AudioURL: m.AudioURL}
	case m.ChunkCount == 0:
		return StageStarting{}
	default:
		return StageStreaming{ChunkCount: m.ChunkCount, Playable: m.Playable}
	}
}

// message is the metadata the session keeps per message. The bytes live in
// the Accumulator.
type message struct {
	id        string
	direction Direction
	playable  bool
	duration  time.Duration
	audioURL  string
	createdAt time.Time
}

// registry holds message metadata in creation order. Its lock is never held
// while calling out of the registry.
type registry struct {
	mu    sync.RWMutex
	byID  map[string]*message
	order []string
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*message)}
}

func (r *registry) add(m *message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.id]; !ok {
		r.order = append(r.order, m.id)
	}
	r.byID[m.id] = m
}

func (r *registry) update(id string, fn func(*message)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if ok {
		fn(m)
	}
	return ok
}

func (r *registry) get(id string) (message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return message{}, false
	}
	return *m, true
}

func (r *registry) audioURL(id string) string {
	m, _ := r.get(id)
	return m.audioURL
}

func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
