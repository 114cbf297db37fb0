package history_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/groovydhruv/power-ups/pkg/history"
)

func backends(t *testing.T) map[string]history.Backend {
	t.Helper()
	b, err := history.NewBadger(history.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	return map[string]history.Backend{
		"memory": history.NewMemory(),
		"badger": b,
	}
}

func TestStorePutGetList(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := history.NewStore(b)
			t.Cleanup(func() { s.Close() })

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			recs := []*history.Record{
				{ID: "msg-b", SessionID: "s1", Direction: "inbound", Status: "complete", ChunkCount: 4, Duration: 2 * time.Second, CreatedAt: base},
				{ID: "user-a", SessionID: "s1", Direction: "outbound", Status: "complete", AudioURL: "https://x/a.wav", CreatedAt: base.Add(time.Second)},
				{ID: "msg-c", SessionID: "s2", Direction: "inbound", Status: "streaming", CreatedAt: base},
			}
			for _, r := range recs {
				if err := s.Put(ctx, r); err != nil {
					t.Fatalf("Put %s: %v", r.ID, err)
				}
			}

			got, err := s.Get(ctx, "s1", "msg-b")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ChunkCount != 4 || got.Duration != 2*time.Second || !got.CreatedAt.Equal(base) {
				t.Fatalf("Get = %+v", got)
			}

			list, err := s.List(ctx, "s1")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, r := range list {
				ids = append(ids, r.ID)
			}
			if !slices.Equal(ids, []string{"msg-b", "user-a"}) {
				t.Fatalf("List ids = %v", ids)
			}

			sessions, err := s.Sessions(ctx)
			if err != nil {
				t.Fatalf("Sessions: %v", err)
			}
			if !slices.Equal(sessions, []string{"s1", "s2"}) {
				t.Fatalf("Sessions = %v", sessions)
			}

			if _, err := s.Get(ctx, "s1", "nope"); !errors.Is(err, history.ErrNotFound) {
				t.Fatalf("Get missing = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := history.NewStore(history.NewMemory())

	r := &history.Record{ID: "m", SessionID: "s", Status: "streaming"}
	s.Put(ctx, r)
	r.Status = "complete"
	r.AudioURL = "https://x/m.wav"
	s.Put(ctx, r)

	got, err := s.Get(ctx, "s", "m")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "complete" || got.AudioURL != "https://x/m.wav" {
		t.Fatalf("Get = %+v", got)
	}
}

func TestStoreSessionPrefixBoundary(t *testing.T) {
	ctx := context.Background()
	s := history.NewStore(history.NewMemory())
	s.Put(ctx, &history.Record{ID: "a", SessionID: "s1"})
	s.Put(ctx, &history.Record{ID: "b", SessionID: "s10"})

	list, err := s.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("List(s1) returned %d records", len(list))
	}
}

func TestStoreInvalidKey(t *testing.T) {
	ctx := context.Background()
	s := history.NewStore(history.NewMemory())
	err := s.Put(ctx, &history.Record{ID: "a:b", SessionID: "s"})
	if !errors.Is(err, history.ErrInvalidKey) {
		t.Fatalf("Put = %v, want ErrInvalidKey", err)
	}
	if _, err := s.List(ctx, ""); !errors.Is(err, history.ErrInvalidKey) {
		t.Fatalf("List empty session = %v, want ErrInvalidKey", err)
	}
}

func TestBadgerDirRequired(t *testing.T) {
	if _, err := history.NewBadger(history.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}
