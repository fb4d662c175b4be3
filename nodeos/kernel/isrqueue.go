package kernel

import (
	"fmt"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// Poller is a queue the owning task checks on every loop iteration instead
// of being signalled by its producers.
type Poller interface {
	Poll()
}

// ISRQueue carries items from interrupt handlers to a task.
//
// Signal is lock-free and never blocks, so it is safe where the hub mutex
// must not be taken. The task loop moves signalled items into an EventQueue
// on Poll, from where they reach the listener like any other event.
type ISRQueue[T any] struct {
	ring   *ring.ShardedRing
	events *EventQueue[T]
}

// NewISRQueue registers a polled queue with owner. The lock-free side holds
// at least capacity items, rounded up to a power of two.
func NewISRQueue[T any](capacity int, owner *Task, listener Listener[T]) (*ISRQueue[T], error) {
	r, err := ring.NewShardedRing(uint64(ringSize(capacity)), 1)
	if err != nil {
		return nil, fmt.Errorf("kernel: isr queue: %w", err)
	}
	q := &ISRQueue[T]{
		ring:   r,
		events: NewEventQueue[T](capacity, owner, listener),
	}
	owner.RegisterPolledQueue(q)
	return q, nil
}

// Signal queues item. It reports false when the item was dropped.
func (q *ISRQueue[T]) Signal(item T) bool {
	return q.ring.Write(0, item)
}

// Poll moves signalled items into the task's event queue while it has room.
func (q *ISRQueue[T]) Poll() {
	for q.events.Count() < q.events.Capacity() {
		v, ok := q.ring.TryRead()
		if !ok {
			return
		}
		item, ok := v.(T)
		if !ok {
			continue
		}
		if !q.events.Push(item) {
			return
		}
	}
}

// Close expires the event side; signalled items are discarded.
func (q *ISRQueue[T]) Close() { q.events.Close() }

func ringSize(capacity int) int {
	n := 8
	for n < capacity {
		n <<= 1
	}
	return n
}
