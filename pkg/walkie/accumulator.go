package walkie

import (
	"fmt"
	"sync"
)

// Accumulator collects the bytes of each message in arrival order.
//
// Every buffer carries a change channel that is closed on the next Append
// or Finalize. Readers take a Snapshot, work on it, and wait on
// Snapshot.Changed to learn about new bytes without polling.
type Accumulator struct {
	mu   sync.Mutex
	bufs map[string]*accBuffer
}

type accBuffer struct {
	data    []byte
	chunks  int
	status  Status
	changed chan struct{}
}

// Snapshot is a consistent view of a buffer at one point in time.
type Snapshot struct {
	// Data is the buffer contents. Its capacity is clipped to its length so
	// it stays valid and unchanged while the buffer keeps growing.
	Data       []byte
	ChunkCount int
	Status     Status
	// Changed is closed as soon as the buffer differs from this snapshot.
	// For a complete buffer it is already closed.
	Changed <-chan struct{}
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{bufs: make(map[string]*accBuffer)}
}

// Open creates an empty receiving buffer.
func (a *Accumulator) Open(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.bufs[id]; ok {
		return fmt.Errorf("%w: duplicate message id %q", ErrProtocolViolation, id)
	}
	a.bufs[id] = &accBuffer{changed: make(chan struct{})}
	return nil
}

// Put creates a buffer that is complete from the start.
func (a *Accumulator) Put(id string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.bufs[id]; ok {
		return fmt.Errorf("%w: duplicate message id %q", ErrProtocolViolation, id)
	}
	a.bufs[id] = &accBuffer{
		data:    data,
		chunks:  1,
		status:  Complete,
		changed: closedChan,
	}
	return nil
}

// Append adds chunk to the end of the buffer and returns the new chunk
// count.
func (a *Accumulator) Append(id string, chunk []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bufs[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMessage, id)
	}
	if b.status == Complete {
		return b.chunks, fmt.Errorf("%w: %q", ErrFinalized, id)
	}
	b.data = append(b.data, chunk...)
	b.chunks++
	close(b.changed)
	b.changed = make(chan struct{})
	return b.chunks, nil
}

// Finalize marks the buffer complete. Finalizing twice is a no-op.
func (a *Accumulator) Finalize(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bufs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, id)
	}
	if b.status == Complete {
		return nil
	}
	b.status = Complete
	close(b.changed)
	b.changed = closedChan
	return nil
}

// Snapshot returns the current state of a buffer.
func (a *Accumulator) Snapshot(id string) (Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bufs[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownMessage, id)
	}
	return Snapshot{
		Data:       b.data[:len(b.data):len(b.data)],
		ChunkCount: b.chunks,
		Status:     b.status,
		Changed:    b.changed,
	}, nil
}

// Has reports whether a buffer exists.
func (a *Accumulator) Has(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.bufs[id]
	return ok
}
