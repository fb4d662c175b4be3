package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubOnly struct{ hub *NotificationHub }

func (h hubOnly) Notifications() *NotificationHub { return h.hub }

type taggedEvent struct {
	queue string
	n     int
}

func drain(t *testing.T, hub *NotificationHub) {
	t.Helper()
	for {
		q, ok := hub.WaitForNotification(0)
		if !ok {
			return
		}
		fwd, live := q.Resolve()
		require.True(t, live)
		fwd.ForwardToListener()
	}
}

func TestEventQueuePushNotifiesAndForwards(t *testing.T) {
	owner := hubOnly{hub: NewNotificationHub()}
	var got []int
	q := NewEventQueue[int](4, owner, ListenerFunc[int](func(v int) { got = append(got, v) }))

	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	assert.Equal(t, 2, owner.hub.Pending())

	drain(t, owner.hub)
	assert.Equal(t, []int{1, 2}, got)
}

func TestEventQueueFullDropsWithoutNotify(t *testing.T) {
	owner := hubOnly{hub: NewNotificationHub()}
	q := NewEventQueue[int](1, owner, nil)

	require.True(t, q.Push(1))
	assert.False(t, q.Push(2))
	assert.Equal(t, 1, owner.hub.Pending())
	assert.Equal(t, 1, q.Count())
}

func TestEventQueueDeliveryFollowsNotifyOrder(t *testing.T) {
	owner := hubOnly{hub: NewNotificationHub()}
	var got []taggedEvent
	listen := ListenerFunc[taggedEvent](func(e taggedEvent) { got = append(got, e) })
	a := NewEventQueue[taggedEvent](4, owner, listen)
	b := NewEventQueue[taggedEvent](4, owner, listen)

	a.Push(taggedEvent{"a", 1})
	b.Push(taggedEvent{"b", 1})
	a.Push(taggedEvent{"a", 2})
	b.Push(taggedEvent{"b", 2})

	drain(t, owner.hub)
	assert.Equal(t, []taggedEvent{{"a", 1}, {"b", 1}, {"a", 2}, {"b", 2}}, got)
}

func TestEventQueueCloseExpiresHandle(t *testing.T) {
	owner := hubOnly{hub: NewNotificationHub()}
	q := NewEventQueue[int](4, owner, ListenerFunc[int](func(int) {
		t.Fatal("listener called after close")
	}))
	q.Push(1)
	h := q.Handle()

	q.Close()

	assert.True(t, h.Expired())
	assert.Equal(t, 0, owner.hub.Pending())
	_, ok := owner.hub.WaitForNotification(10 * time.Millisecond)
	assert.False(t, ok)
	assert.False(t, q.Push(2), "push after close")
}
