package kernel

import (
	"context"
	"time"
)

const inboxSendRetry = time.Millisecond

// Inbox is a bounded queue drained by one blocking consumer instead of a
// task loop. Producers that must not stall use a short send timeout and drop
// the item when it runs out.
type Inbox[T any] struct {
	queue *BoundedQueue[T]
	hub   *NotificationHub
	ref   *queueRef
}

func NewInbox[T any](capacity int) *Inbox[T] {
	b := &Inbox[T]{
		queue: NewBoundedQueue[T](capacity),
		hub:   NewNotificationHub(),
	}
	b.ref = newQueueRef(b)
	return b
}

// ForwardToListener does nothing; items leave the inbox through Receive.
func (b *Inbox[T]) ForwardToListener() {}

// Send enqueues item, retrying for up to timeout while the inbox is full.
func (b *Inbox[T]) Send(item T, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !b.queue.Push(item) {
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(inboxSendRetry)
	}
	b.hub.Notify(QueueHandle{ref: b.ref})
	return true
}

// Receive blocks until an item arrives, timeout elapses or ctx is done.
// Forever waits without bound.
func (b *Inbox[T]) Receive(ctx context.Context, timeout time.Duration) (T, bool) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		wait := Forever
		if !deadline.IsZero() {
			wait = max(time.Until(deadline), 0)
		}
		if _, ok := b.hub.WaitContext(ctx, wait); !ok {
			var zero T
			return zero, false
		}
		// Reset may have drained the item after it was signalled.
		if item, ok := b.queue.Pop(); ok {
			return item, true
		}
	}
}

// Reset drops queued items and their notifications.
//
// The hub is cleared first, so an item sent in between either goes with the
// queue or keeps its notification.
func (b *Inbox[T]) Reset() {
	b.hub.Clear()
	b.queue.Clear()
}

func (b *Inbox[T]) Count() int { return b.queue.Count() }
