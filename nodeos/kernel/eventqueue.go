package kernel

// Listener receives the items of an EventQueue on the owning task's goroutine.
type Listener[T any] interface {
	Event(item T)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc[T any] func(item T)

func (f ListenerFunc[T]) Event(item T) { f(item) }

// HubOwner is anything that owns a NotificationHub, normally a *Task.
type HubOwner interface {
	Notifications() *NotificationHub
}

// EventQueue is a BoundedQueue registered with a task's hub and bound to a
// single listener.
//
// Producers on any goroutine call Push. The owning task's loop calls
// ForwardToListener once per notification, so items of one queue arrive in
// push order while items of different queues arrive in notify order.
type EventQueue[T any] struct {
	queue    *BoundedQueue[T]
	hub      *NotificationHub
	listener Listener[T]
	ref      *queueRef
}

func NewEventQueue[T any](capacity int, owner HubOwner, listener Listener[T]) *EventQueue[T] {
	q := &EventQueue[T]{
		queue:    NewBoundedQueue[T](capacity),
		hub:      owner.Notifications(),
		listener: listener,
	}
	q.ref = newQueueRef(q)
	return q
}

// Push enqueues item and signals the owning task. It returns false when the
// queue is full or closed; the item is dropped in that case.
func (q *EventQueue[T]) Push(item T) bool {
	h := q.Handle()
	if h.Expired() {
		return false
	}
	if !q.queue.Push(item) {
		return false
	}
	q.hub.Notify(h)
	return true
}

// ForwardToListener hands the oldest item to the listener.
func (q *EventQueue[T]) ForwardToListener() {
	item, ok := q.queue.Pop()
	if !ok || q.listener == nil {
		return
	}
	q.listener.Event(item)
}

// Handle returns the non-owning reference the hub keeps.
func (q *EventQueue[T]) Handle() QueueHandle { return QueueHandle{ref: q.ref} }

func (q *EventQueue[T]) Count() int { return q.queue.Count() }

func (q *EventQueue[T]) Capacity() int { return q.queue.Capacity() }

func (q *EventQueue[T]) Clear() { q.queue.Clear() }

// Close detaches the queue from its hub. Pending notifications for it are
// purged and later pushes fail.
func (q *EventQueue[T]) Close() {
	q.ref.expire()
	q.queue.Clear()
	q.hub.RemoveExpiredQueues()
}
