// Package ringbuffer implements a lock-free single-producer single-consumer
// queue for real-time audio. It is the one data structure shared by the
// audio callback core, the monitor output callback, and the file writer
// workers: the audio thread only ever pushes, a single background goroutine
// only ever pops.
package ringbuffer

import "sync/atomic"

// RingBuffer is a lock-free SPSC queue of T. Push is safe to call only from
// the single producer; Pop only from the single consumer. Both are
// allocation-free and never block, which is what lets Push be called
// directly from a real-time audio callback.
type RingBuffer[T any] struct {
	buffer   []T
	size     uint64 // must be power of 2
	mask     uint64 // size - 1, for efficient modulo
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring buffer able to hold size items. size is rounded up to
// the next power of 2 so that index wrapping reduces to a mask.
func New[T any](size uint64) *RingBuffer[T] {
	size = nextPowerOf2(size)
	return &RingBuffer[T]{
		buffer: make([]T, size),
		size:   size,
		mask:   size - 1,
	}
}

// Push writes one item to the ring buffer. It reports false, without
// blocking, if the buffer is full: the caller (the audio callback) drops
// the item and continues. Audio-thread saturation is a silent drop, never
// a block.
func (rb *RingBuffer[T]) Push(item T) bool {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	if writePos-readPos >= rb.size {
		return false
	}
	rb.buffer[writePos&rb.mask] = item
	rb.writePos.Store(writePos + 1)
	return true
}

// Pop reads one item from the ring buffer. It reports false if the buffer
// is currently empty.
func (rb *RingBuffer[T]) Pop() (T, bool) {
	var zero T
	readPos := rb.readPos.Load()
	writePos := rb.writePos.Load()
	if readPos == writePos {
		return zero, false
	}
	item := rb.buffer[readPos&rb.mask]
	rb.buffer[readPos&rb.mask] = zero // drop the reference so a pointer-ish T isn't pinned
	rb.readPos.Store(readPos + 1)
	return item, true
}

// AvailableWrite returns the number of items that can currently be pushed
// without a drop.
func (rb *RingBuffer[T]) AvailableWrite() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return rb.size - (writePos - readPos)
}

// AvailableRead returns the number of items currently waiting to be popped.
func (rb *RingBuffer[T]) AvailableRead() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return writePos - readPos
}

// Size returns the ring buffer's capacity in items.
func (rb *RingBuffer[T]) Size() uint64 {
	return rb.size
}

// Reset drops all queued items by resetting read and write positions. Only
// safe when neither producer nor consumer is active.
func (rb *RingBuffer[T]) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

// nextPowerOf2 rounds n up to the next power of 2.
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
