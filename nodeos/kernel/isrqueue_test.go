package kernel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISRQueuePollForwardsThroughHub(t *testing.T) {
	task := New(Config{Name: "isr"}, nil)
	var got []int
	q, err := NewISRQueue[int](4, task, ListenerFunc[int](func(v int) { got = append(got, v) }))
	require.NoError(t, err)

	require.True(t, q.Signal(1))
	require.True(t, q.Signal(2))
	assert.Equal(t, 0, task.Notifications().Pending(), "signal must not touch the hub")

	q.Poll()
	assert.Equal(t, 2, task.Notifications().Pending())
	drain(t, task.Notifications())
	assert.Equal(t, []int{1, 2}, got)
}

func TestISRQueuePollStopsWhenEventsFull(t *testing.T) {
	task := New(Config{Name: "isr-full"}, nil)
	q, err := NewISRQueue[int](2, task, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.True(t, q.Signal(i))
	}
	q.Poll()
	require.True(t, q.Signal(9))
	q.Poll()

	assert.Equal(t, 2, q.events.Count())
}

func TestISRQueueDeliveredByTaskLoop(t *testing.T) {
	var seen atomic.Int32
	task := New(Config{Name: "isr-loop"}, nil)
	q, err := NewISRQueue[int](8, task, ListenerFunc[int](func(int) { seen.Add(1) }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	task.Start(ctx)

	for i := 0; i < 3; i++ {
		q.Signal(i)
	}
	require.Eventually(t, func() bool { return seen.Load() == 3 }, time.Second, 5*time.Millisecond)
}
