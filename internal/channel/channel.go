// Package channel provides the bounded hand-off pipes between stream
// receivers and their processors. A receiver pushes decoded messages in,
// a processor drains the read side until the pipe is closed.
package channel

import "context"

// Receiver provides read access to a pipe.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a pipe.
type Sender[T any] interface {
	Send(T)
	SendCtx(context.Context, T) bool
	TrySend(T) bool
}

// Channel combines read and write access. Close is called exactly once,
// by the side that owns the write end, after its producer has stopped.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Cap() int
	Close()
}

// Buffered is the production pipe: a fixed-capacity channel. Send blocks
// when the buffer is full, which back-pressures the stream receiver
// instead of growing memory without bound.
type Buffered[T any] struct {
	ch chan T
}

// New creates a pipe with the given buffer capacity.
func New[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// Send enqueues a value, blocking while the buffer is full.
func (b *Buffered[T]) Send(v T) {
	b.ch <- v
}

// SendCtx enqueues a value, blocking while the buffer is full. It gives
// up and reports false when the context is cancelled first, so a blocked
// producer can be shut down without draining the pipe.
func (b *Buffered[T]) SendCtx(ctx context.Context, v T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case b.ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// TrySend enqueues a value without blocking. It reports false when the
// buffer is full so the caller can count the drop.
func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the read side of the pipe. It is closed when the
// writer is done; draining with range terminates cleanly.
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of queued items.
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Cap returns the buffer capacity.
func (b *Buffered[T]) Cap() int {
	return cap(b.ch)
}

// Close closes the write side. Sending after Close panics, so the caller
// must have joined the producer first.
func (b *Buffered[T]) Close() {
	close(b.ch)
}
