package buffer

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestBuffer_WriteRead(t *testing.T) {
	buf := N[byte](10)

	n, err := buf.Write([]byte{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}
	if buf.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", buf.Len())
	}

	buf.CloseWrite()

	got := make([]byte, 3)
	n, err = buf.Read(got)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !bytes.Equal(got[:n], []byte{1, 2, 3}) {
		t.Fatalf("Read got %v, want [1,2,3]", got[:n])
	}
	n, err = buf.Read(got)
	if err != nil {
		t.Fatalf("second Read error: %v", err)
	}
	if !bytes.Equal(got[:n], []byte{4, 5}) {
		t.Fatalf("second Read got %v, want [4,5]", got[:n])
	}

	if _, err = buf.Read(got); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestBuffer_NextIsFIFO(t *testing.T) {
	buf := N[int](4)
	for i := 0; i < 10; i++ {
		if err := buf.Add(i); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	buf.CloseWrite()

	for want := 0; want < 10; want++ {
		got, err := buf.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Fatalf("Next = %d, want %d", got, want)
		}
	}
	if _, err := buf.Next(); err != ErrIteratorDone {
		t.Fatalf("expected ErrIteratorDone, got %v", err)
	}
}

func TestBuffer_NextBlocksUntilAdd(t *testing.T) {
	buf := N[string](1)

	got := make(chan string, 1)
	go func() {
		v, err := buf.Next()
		if err != nil {
			t.Errorf("Next: %v", err)
		}
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Next returned %q before any Add", v)
	case <-time.After(20 * time.Millisecond):
	}

	if err := buf.Add("ready"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	select {
	case v := <-got:
		if v != "ready" {
			t.Fatalf("Next = %q, want ready", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up after Add")
	}
}

func TestBuffer_ConcurrentWriteRead(t *testing.T) {
	buf := N[byte](16)

	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < len(data); i += 32 {
			if _, err := buf.Write(data[i : i+32]); err != nil {
				t.Errorf("Write error: %v", err)
				return
			}
		}
		buf.CloseWrite()
	}()

	var received []byte
	go func() {
		defer wg.Done()
		tmp := make([]byte, 48)
		for {
			n, err := buf.Read(tmp)
			if err == io.EOF {
				return
			}
			if err != nil {
				t.Errorf("Read error: %v", err)
				return
			}
			received = append(received, tmp[:n]...)
		}
	}()

	wg.Wait()

	if !bytes.Equal(received, data) {
		t.Errorf("received data mismatch")
	}
}

func TestBuffer_WriteAfterClose(t *testing.T) {
	buf := N[int](1)
	buf.CloseWrite()
	if err := buf.Add(1); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Add after CloseWrite = %v, want io.ErrClosedPipe", err)
	}
	if err := buf.CloseWrite(); err != nil {
		t.Fatalf("second CloseWrite = %v", err)
	}
}

func TestBuffer_CloseWithError(t *testing.T) {
	buf := N[int](1)
	boom := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		_, err := buf.Next()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	buf.CloseWithError(boom)

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("Next error = %v, want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next not unblocked by CloseWithError")
	}
	if !errors.Is(buf.Error(), boom) {
		t.Fatalf("Error() = %v", buf.Error())
	}
	if err := buf.Add(2); !errors.Is(err, boom) {
		t.Fatalf("Add after CloseWithError = %v", err)
	}
}

func TestBuffer_DiscardResetBytes(t *testing.T) {
	buf := Bytes()
	buf.Write([]byte("hello world"))

	if err := buf.Discard(6); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	snap := buf.Bytes()
	if string(snap) != "world" {
		t.Fatalf("Bytes = %q, want world", snap)
	}
	snap[0] = 'W'
	if string(buf.Bytes()) != "world" {
		t.Fatal("Bytes must return a copy")
	}

	if err := buf.Discard(100); err != nil {
		t.Fatalf("Discard past end: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("Len after Discard = %d", buf.Len())
	}

	buf.Write([]byte("x"))
	buf.Reset()
	if buf.Len() != 0 {
		t.Fatalf("Len after Reset = %d", buf.Len())
	}
}
