// Package ringbuf provides a single-producer single-consumer lock-free ring
// buffer for handing data between the audio goroutine and one other goroutine.
//
// Exactly one goroutine may call the producer methods (Push, PushSlice) and
// exactly one goroutine may call the consumer methods (Pop, PopSlice, Drain).
// Neither side blocks or allocates.
package ringbuf

import (
	"fmt"
	"sync/atomic"
)

// Ring is a bounded SPSC queue whose capacity is a power of two.
type Ring[T any] struct {
	buf  []T
	mask uint64

	_    [56]byte
	head atomic.Uint64 // next slot to read, written by the consumer
	_    [56]byte
	tail atomic.Uint64 // next slot to write, written by the producer
}

// New returns a ring that holds at least capacity elements. Capacity is
// rounded up to the next power of two.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ringbuf: capacity must be > 0: %d", capacity)
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring[T]{buf: make([]T, size), mask: uint64(size - 1)}, nil
}

// Cap returns the number of elements the ring can hold.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Len returns the number of queued elements. The result is a snapshot and
// may be stale by the time it is used.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Push appends v and reports whether there was room.
func (r *Ring[T]) Push(v T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1)
	return true
}

// PushSlice appends as many elements of src as fit and returns how many
// were written.
func (r *Ring[T]) PushSlice(src []T) int {
	tail := r.tail.Load()
	free := uint64(len(r.buf)) - (tail - r.head.Load())
	n := uint64(len(src))
	if n > free {
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(tail+i)&r.mask] = src[i]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// Pop removes the oldest element. ok is false when the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return v, false
	}
	slot := &r.buf[head&r.mask]
	v = *slot
	var zero T
	*slot = zero
	r.head.Store(head + 1)
	return v, true
}

// PopSlice moves up to len(dst) elements into dst and returns how many
// were read.
func (r *Ring[T]) PopSlice(dst []T) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	var zero T
	for i := uint64(0); i < n; i++ {
		slot := &r.buf[(head+i)&r.mask]
		dst[i] = *slot
		*slot = zero
	}
	r.head.Store(head + n)
	return int(n)
}

// Drain calls fn for every queued element, oldest first, and returns the
// number of elements consumed.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}
