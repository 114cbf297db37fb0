package walkie

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
)

func TestAccumulator_AppendKeepsOrder(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.Open("m1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	var want []byte
	for i := 0; i < 200; i++ {
		chunk := make([]byte, rng.IntN(64))
		for j := range chunk {
			chunk[j] = byte(rng.Uint32())
		}
		want = append(want, chunk...)
		n, err := acc.Append("m1", chunk)
		if err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
		if n != i+1 {
			t.Fatalf("Append #%d returned count %d", i, n)
		}
	}

	snap, err := acc.Snapshot("m1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !bytes.Equal(snap.Data, want) {
		t.Fatal("buffer is not the concatenation of the chunks")
	}
	if snap.ChunkCount != 200 || snap.Status != Receiving {
		t.Fatalf("snapshot = %d chunks, %s", snap.ChunkCount, snap.Status)
	}
}

func TestAccumulator_SnapshotIsStable(t *testing.T) {
	acc := NewAccumulator()
	acc.Open("m1")
	acc.Append("m1", []byte("abc"))

	snap, _ := acc.Snapshot("m1")
	acc.Append("m1", []byte("def"))

	if string(snap.Data) != "abc" {
		t.Fatalf("old snapshot changed to %q", snap.Data)
	}
	select {
	case <-snap.Changed:
	default:
		t.Fatal("Changed not closed after Append")
	}

	next, _ := acc.Snapshot("m1")
	if string(next.Data) != "abcdef" {
		t.Fatalf("new snapshot = %q", next.Data)
	}
	select {
	case <-next.Changed:
		t.Fatal("Changed closed without a change")
	default:
	}
}

func TestAccumulator_Finalize(t *testing.T) {
	acc := NewAccumulator()
	acc.Open("m1")
	acc.Append("m1", []byte("abc"))
	snap, _ := acc.Snapshot("m1")

	if err := acc.Finalize("m1"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	select {
	case <-snap.Changed:
	default:
		t.Fatal("Changed not closed by Finalize")
	}
	if err := acc.Finalize("m1"); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	n, err := acc.Append("m1", []byte("x"))
	if !errors.Is(err, ErrFinalized) {
		t.Fatalf("Append after Finalize = %v, want ErrFinalized", err)
	}
	if n != 1 {
		t.Fatalf("count after rejected Append = %d", n)
	}

	done, _ := acc.Snapshot("m1")
	if done.Status != Complete || string(done.Data) != "abc" {
		t.Fatalf("final snapshot = %s %q", done.Status, done.Data)
	}
	select {
	case <-done.Changed:
	default:
		t.Fatal("complete buffer must have a closed Changed")
	}
}

func TestAccumulator_Errors(t *testing.T) {
	acc := NewAccumulator()
	if _, err := acc.Append("nope", []byte("x")); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("Append unknown = %v", err)
	}
	if err := acc.Finalize("nope"); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("Finalize unknown = %v", err)
	}
	if _, err := acc.Snapshot("nope"); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("Snapshot unknown = %v", err)
	}

	acc.Open("m1")
	if err := acc.Open("m1"); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("duplicate Open = %v", err)
	}
	if err := acc.Put("m1", []byte("x")); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("Put over open id = %v", err)
	}
}

func TestAccumulator_Put(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.Put("user-1", []byte("wav")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !acc.Has("user-1") {
		t.Fatal("Has = false after Put")
	}
	snap, _ := acc.Snapshot("user-1")
	if snap.Status != Complete || snap.ChunkCount != 1 {
		t.Fatalf("Put snapshot = %s, %d chunks", snap.Status, snap.ChunkCount)
	}
	if _, err := acc.Append("user-1", []byte("x")); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Append to Put buffer = %v", err)
	}
}

func TestAccumulator_ConcurrentReaders(t *testing.T) {
	acc := NewAccumulator()
	acc.Open("m1")

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := 0
			for {
				snap, err := acc.Snapshot("m1")
				if err != nil {
					t.Errorf("Snapshot: %v", err)
					return
				}
				if len(snap.Data) < prev {
					t.Errorf("buffer shrank from %d to %d", prev, len(snap.Data))
					return
				}
				prev = len(snap.Data)
				if snap.Status == Complete {
					return
				}
				<-snap.Changed
			}
		}()
	}
	for i := 0; i < 100; i++ {
		acc.Append("m1", []byte{byte(i)})
	}
	acc.Finalize("m1")
	wg.Wait()
}
