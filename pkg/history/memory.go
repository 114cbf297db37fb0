package history

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
)

// Memory is an in-memory Backend. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key, value []byte) error {
	cp := bytes.Clone(value)
	m.mu.Lock()
	m.data[string(key)] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Scan(_ context.Context, prefix []byte) iter.Seq2[Entry, error] {
	// Snapshot matching keys under read lock.
	m.mu.RLock()
	var matches []Entry
	for k, v := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			matches = append(matches, Entry{Key: []byte(k), Value: bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return bytes.Compare(matches[i].Key, matches[j].Key) < 0
	})

	return func(yield func(Entry, error) bool) {
		for _, e := range matches {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
