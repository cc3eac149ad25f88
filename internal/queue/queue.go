package queue

import (
	"sync"
)

// Bounded is a thread-safe fixed-capacity FIFO ring. Producers use the
// non-blocking TrySend and handle rejection themselves; the consumer
// blocks in Receive until an item is available or the queue is closed.
type Bounded[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool
}

// NewBounded creates a queue with the given capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Bounded[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// TrySend adds an item without blocking.
// Returns false if the queue is full or closed. A full queue keeps its
// existing items; the new item is the one rejected.
func (b *Bounded[T]) TrySend(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.count == b.capacity {
		return false
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++

	// Signal waiting receiver
	b.cond.Signal()
	return true
}

// Receive removes and returns the oldest item.
// Blocks until an item is available or the queue is closed.
// After Close, remaining items are drained before the closed signal
// (zero value and false) is returned.
func (b *Bounded[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 {
		var zero T
		return zero, false
	}

	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero // clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.count--

	return item, true
}

// Close closes the queue. After closing, TrySend returns false and
// receivers get remaining items followed by the closed signal.
func (b *Bounded[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast() // Wake all waiters
}

// Len returns the current number of queued items.
func (b *Bounded[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Bounded[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}
