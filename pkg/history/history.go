// Package history records the voice messages exchanged in walkie sessions.
//
// Records are msgpack-encoded and stored in a key-value Backend under
// hierarchical keys of the form walkie:session:<session>:msg:<message>.
// The package includes a BadgerDB-backed Backend for on-disk history and an
// in-memory one for tests and ephemeral sessions.
package history

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("history: not found")

	// ErrInvalidKey is returned when an id contains the key separator.
	ErrInvalidKey = errors.New("history: invalid key")
)

// Separator joins key segments.
const Separator = ':'

// Record is the persisted summary of one voice message.
type Record struct {
	ID         string        `msgpack:"id" json:"id"`
	SessionID  string        `msgpack:"session_id" json:"session_id"`
	Direction  string        `msgpack:"direction" json:"direction"`
	Status     string        `msgpack:"status" json:"status"`
	ChunkCount int           `msgpack:"chunk_count" json:"chunk_count"`
	Duration   time.Duration `msgpack:"duration" json:"duration"`
	AudioURL   string        `msgpack:"audio_url,omitempty" json:"audio_url,omitempty"`
	CreatedAt  time.Time     `msgpack:"created_at" json:"created_at"`
}

// Backend is a byte-oriented key-value store with prefix scans.
type Backend interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	// Scan iterates over entries whose key starts with prefix in
	// lexicographic key order.
	Scan(ctx context.Context, prefix []byte) iter.Seq2[Entry, error]
	Close() error
}

// Entry is a key-value pair yielded by Backend.Scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// Store reads and writes Records on top of a Backend.
type Store struct {
	b Backend
}

// NewStore wraps b.
func NewStore(b Backend) *Store {
	return &Store{b: b}
}

func key(segs ...string) ([]byte, error) {
	for _, s := range segs {
		if s == "" || strings.IndexByte(s, Separator) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}
	return []byte(strings.Join(segs, string(Separator))), nil
}

func recordKey(sessionID, id string) ([]byte, error) {
	return key("walkie", "session", sessionID, "msg", id)
}

// Put stores rec, replacing any earlier version of the same message.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	k, err := recordKey(rec.SessionID, rec.ID)
	if err != nil {
		return err
	}
	v, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: encode %s: %w", rec.ID, err)
	}
	return s.b.Set(ctx, k, v)
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, sessionID, id string) (*Record, error) {
	k, err := recordKey(sessionID, id)
	if err != nil {
		return nil, err
	}
	v, err := s.b.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := msgpack.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("history: decode %s: %w", id, err)
	}
	return &rec, nil
}

// List returns the records of a session ordered by creation time.
func (s *Store) List(ctx context.Context, sessionID string) ([]*Record, error) {
	p, err := key("walkie", "session", sessionID, "msg")
	if err != nil {
		return nil, err
	}
	p = append(p, Separator)

	var recs []*Record
	for e, err := range s.b.Scan(ctx, p) {
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("history: decode %s: %w", e.Key, err)
		}
		recs = append(recs, &rec)
	}
	slices.SortStableFunc(recs, func(a, b *Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return recs, nil
}

// Sessions returns the ids of every session with at least one record, in
// lexicographic order.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	p := []byte("walkie:session:")
	var ids []string
	for e, err := range s.b.Scan(ctx, p) {
		if err != nil {
			return nil, err
		}
		rest := string(e.Key[len(p):])
		sid, _, _ := strings.Cut(rest, string(Separator))
		if len(ids) == 0 || ids[len(ids)-1] != sid {
			ids = append(ids, sid)
		}
	}
	return ids, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.b.Close()
}
