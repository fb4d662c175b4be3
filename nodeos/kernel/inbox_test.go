package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxSendReceive(t *testing.T) {
	b := NewInbox[string](2)

	require.True(t, b.Send("x", 0))
	got, ok := b.Receive(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "x", got)
}

func TestInboxSendFullTimesOut(t *testing.T) {
	b := NewInbox[int](1)
	require.True(t, b.Send(1, 0))

	start := time.Now()
	assert.False(t, b.Send(2, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1, b.Count())
}

func TestInboxReceiveTimeout(t *testing.T) {
	b := NewInbox[int](1)

	start := time.Now()
	_, ok := b.Receive(context.Background(), 30*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestInboxReceiveBlocksUntilSend(t *testing.T) {
	b := NewInbox[int](1)
	time.AfterFunc(10*time.Millisecond, func() { b.Send(7, time.Second) })

	got, ok := b.Receive(context.Background(), Forever)
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestInboxReset(t *testing.T) {
	b := NewInbox[int](4)
	b.Send(1, 0)
	b.Send(2, 0)

	b.Reset()

	assert.Equal(t, 0, b.Count())
	_, ok := b.Receive(context.Background(), 0)
	assert.False(t, ok)
}

func TestInboxResetRacingSendKeepsItemReceivable(t *testing.T) {
	b := NewInbox[int](1)
	for i := 0; i < 500; i++ {
		sent := make(chan struct{})
		go func() {
			b.Send(i, 0)
			close(sent)
		}()
		b.Reset()
		<-sent

		if b.Count() == 1 {
			_, ok := b.Receive(context.Background(), 0)
			require.True(t, ok, "item %d queued without a notification", i)
		}
		b.Reset()
	}
}
