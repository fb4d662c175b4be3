package kernel

import "sync"

// BoundedQueue is a fixed-capacity FIFO that is safe for concurrent use.
//
// Push never blocks and never evicts: when the queue is full the item is
// rejected and the caller decides what to do with it.
type BoundedQueue[T any] struct {
	_ [0]func() // prevent accidental copying.

	mu    sync.Mutex
	head  uint64
	tail  uint64
	slots []T
}

// NewBoundedQueue returns an empty queue holding at most capacity items.
// A capacity below one is raised to one.
func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedQueue[T]{slots: make([]T, capacity)}
}

// Push appends item and reports whether it fit.
func (q *BoundedQueue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := uint64(len(q.slots))
	if q.head-q.tail >= n {
		return false
	}
	q.slots[q.head%n] = item
	q.head++
	return true
}

// Pop removes and returns the oldest item.
func (q *BoundedQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.tail == q.head {
		return zero, false
	}
	i := q.tail % uint64(len(q.slots))
	item := q.slots[i]
	q.slots[i] = zero
	q.tail++
	return item, true
}

func (q *BoundedQueue[T]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.head - q.tail)
}

func (q *BoundedQueue[T]) Capacity() int { return len(q.slots) }

func (q *BoundedQueue[T]) Empty() bool { return q.Count() == 0 }

func (q *BoundedQueue[T]) Full() bool { return q.Count() >= len(q.slots) }

// Clear drops every queued item.
func (q *BoundedQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.slots)
	q.head, q.tail = 0, 0
}
