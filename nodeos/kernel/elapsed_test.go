package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsedTime(t *testing.T) {
	now := time.Unix(0, 0)
	e := NewElapsedTime(func() time.Time { return now })

	assert.False(t, e.IsRunning())
	assert.Zero(t, e.Elapsed())

	e.Start()
	now = now.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, e.Elapsed())

	e.Reset()
	now = now.Add(time.Second)
	assert.Equal(t, time.Second, e.Elapsed())
	assert.True(t, e.IsRunning())

	e.Stop()
	now = now.Add(time.Hour)
	assert.Equal(t, time.Second, e.Elapsed())
	assert.False(t, e.IsRunning())
}
