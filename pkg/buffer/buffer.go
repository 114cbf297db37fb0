package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next once the buffer is closed for writing
// and every queued element has been consumed.
var ErrIteratorDone = errors.New("iterator done")

// Buffer is a thread-safe growable FIFO buffer. Writers never block; readers
// block while the buffer is empty until data arrives or the buffer is closed.
//
// Elements are delivered in exactly the order they were written. After
// CloseWrite, readers keep draining the remaining elements and then get
// io.EOF (Read) or ErrIteratorDone (Next). CloseWithError drops everything
// and fails all pending and future operations with the given error.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
}

// N creates a new Buffer with an initial capacity hint of n elements.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// notifyLocked wakes one waiting reader. The send is dropped when a wakeup
// is already pending; once writes are closed the channel itself is closed
// and every reader wakes on its own.
func (b *Buffer[T]) notifyLocked() {
	if b.closeWrite {
		return
	}
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
}

func (b *Buffer[T]) writableLocked() error {
	if b.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

// Write appends all elements of p. It implements io.Writer for byte buffers.
func (b *Buffer[T]) Write(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writableLocked(); err != nil {
		return 0, err
	}
	b.buf = append(b.buf, p...)
	b.notifyLocked()
	return len(p), nil
}

// Add appends a single element.
func (b *Buffer[T]) Add(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writableLocked(); err != nil {
		return err
	}
	b.buf = append(b.buf, t)
	b.notifyLocked()
	return nil
}

// waitLocked blocks until the buffer holds data, is closed for writing or is
// closed with an error. It must be called with b.mu held and returns with
// b.mu held.
func (b *Buffer[T]) waitLocked() (eof bool, err error) {
	for len(b.buf) == 0 {
		if b.closeErr != nil {
			return false, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
		if b.closeWrite {
			return true, nil
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
	}
	if b.closeErr != nil {
		return false, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
	}
	return false, nil
}

// Read reads up to len(p) elements from the head of the buffer. It blocks
// while the buffer is empty and returns io.EOF once the buffer is closed for
// writing and drained.
func (b *Buffer[T]) Read(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	eof, err := b.waitLocked()
	if err != nil {
		return 0, err
	}
	if eof {
		return 0, io.EOF
	}
	n = copy(p, b.buf)
	b.buf = b.buf[n:]
	if len(b.buf) > 0 {
		b.notifyLocked()
	}
	return n, nil
}

// Next removes and returns the oldest element. It blocks while the buffer is
// empty and returns ErrIteratorDone once the buffer is closed for writing and
// drained.
func (b *Buffer[T]) Next() (t T, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	eof, err := b.waitLocked()
	if err != nil {
		return t, err
	}
	if eof {
		return t, ErrIteratorDone
	}
	t = b.buf[0]
	var zero T
	b.buf[0] = zero
	b.buf = b.buf[1:]
	if len(b.buf) > 0 {
		b.notifyLocked()
	}
	return t, nil
}

// Discard drops the n oldest elements without reading them.
func (b *Buffer[T]) Discard(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return fmt.Errorf("buffer: skip from closed buffer: %w", b.closeErr)
	}
	if n > len(b.buf) {
		n = len(b.buf)
	}
	b.buf = b.buf[n:]
	return nil
}

// CloseWrite stops further writes while letting readers drain the remaining
// elements. It is idempotent.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// CloseWithError closes both ends immediately. Pending and future operations
// fail with err, or io.ErrClosedPipe when err is nil.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// Reset drops all queued elements. It does not reopen a closed buffer.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
}

// Len returns the number of queued elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Bytes returns a copy of the queued elements, oldest first.
func (b *Buffer[T]) Bytes() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, len(b.buf))
	copy(out, b.buf)
	return out
}
