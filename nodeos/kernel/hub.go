package kernel

import (
	"context"
	"sync"
	"time"
	"weak"
)

// Forever makes a hub wait block until a notification arrives.
const Forever time.Duration = -1

// Forwarder is the side of an event queue the owning task's loop sees.
type Forwarder interface {
	ForwardToListener()
}

// QueueHandle is a non-owning reference to an event queue.
//
// The handle expires when the queue is closed or collected; after that Resolve
// reports false. Holding a handle never keeps the queue alive.
type QueueHandle struct {
	ref *queueRef
}

type queueRef struct {
	mu     sync.Mutex
	closed bool
	load   func() Forwarder
}

// newQueueRef references q weakly.
func newQueueRef[T any, P interface {
	*T
	Forwarder
}](q P) *queueRef {
	wp := weak.Make((*T)(q))
	return &queueRef{load: func() Forwarder {
		if p := wp.Value(); p != nil {
			return P(p)
		}
		return nil
	}}
}

func (r *queueRef) expire() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Resolve returns the live queue behind h.
func (h QueueHandle) Resolve() (Forwarder, bool) {
	if h.ref == nil {
		return nil, false
	}
	h.ref.mu.Lock()
	closed := h.ref.closed
	h.ref.mu.Unlock()
	if closed {
		return nil, false
	}
	fwd := h.ref.load()
	return fwd, fwd != nil
}

// Expired reports whether the referenced queue is gone.
func (h QueueHandle) Expired() bool {
	_, ok := h.Resolve()
	return !ok
}

// NotificationHub is the single wait point of a task.
//
// Producers call Notify after a successful push; the owning task blocks in
// WaitForNotification and receives handles in the order they were signalled.
// Ordering across queues is first come first served, there is no priority.
//
// Lock order: while the hub mutex is held only handle locks are taken.
type NotificationHub struct {
	_ [0]func() // prevent accidental copying.

	mu      sync.Mutex
	pending []QueueHandle

	// signal carries at most one wake-up token; pending is the truth.
	signal chan struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{signal: make(chan struct{}, 1)}
}

// Notify appends q to the pending sequence and wakes the waiter.
func (h *NotificationHub) Notify(q QueueHandle) {
	h.mu.Lock()
	h.pending = append(h.pending, q)
	h.mu.Unlock()

	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// WaitForNotification returns the oldest pending handle, blocking for up to
// timeout until one is available. A zero timeout only polls, Forever waits
// without bound. ok is false when the timeout elapsed first.
func (h *NotificationHub) WaitForNotification(timeout time.Duration) (QueueHandle, bool) {
	return h.WaitContext(context.Background(), timeout)
}

// WaitContext is WaitForNotification that also gives up when ctx is done.
func (h *NotificationHub) WaitContext(ctx context.Context, timeout time.Duration) (QueueHandle, bool) {
	if q, ok := h.take(); ok {
		return q, true
	}
	if timeout == 0 {
		return QueueHandle{}, false
	}

	var expiry <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expiry = t.C
	}

	for {
		select {
		case <-h.signal:
			// A stale token or a purged handle leaves nothing to take.
			if q, ok := h.take(); ok {
				return q, true
			}
		case <-expiry:
			return h.take()
		case <-ctx.Done():
			return QueueHandle{}, false
		}
	}
}

// take pops the first pending handle that has not expired.
func (h *NotificationHub) take() (QueueHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.pending) > 0 {
		q := h.pending[0]
		n := copy(h.pending, h.pending[1:])
		h.pending[n] = QueueHandle{}
		h.pending = h.pending[:n]
		if !q.Expired() {
			return q, true
		}
	}
	return QueueHandle{}, false
}

// RemoveExpiredQueues drops pending handles whose queue has been closed.
func (h *NotificationHub) RemoveExpiredQueues() {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.pending[:0]
	for _, q := range h.pending {
		if !q.Expired() {
			kept = append(kept, q)
		}
	}
	clear(h.pending[len(kept):])
	h.pending = kept
}

// Clear drops every pending handle.
func (h *NotificationHub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.pending)
	h.pending = h.pending[:0]
}

// Pending returns the number of queued notifications.
func (h *NotificationHub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
