//go:build !tinygo

package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radionode/hal"
	"radionode/internal/config"
	"radionode/internal/logging"
	"radionode/nodeos/kernel"
)

func TestRunSimulatedNode(t *testing.T) {
	cfg := config.Default()
	cfg.Task.UplinkInterval = 30 * time.Millisecond
	cfg.Radio.JoinRetry = 20 * time.Millisecond
	cfg.Sim.Airtime = 2 * time.Millisecond
	cfg.Sim.JoinAcceptDelay = 10 * time.Millisecond
	cfg.Sim.RxDelay = 5 * time.Millisecond

	host := hal.NewHost(hal.HostConfig{DIO0: 26, Airtime: cfg.Sim.Airtime, Output: io.Discard})

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	require.NoError(t, Run(ctx, host, cfg, Options{Logger: logging.Discard()}))

	frames := host.Radio().Frames()
	require.GreaterOrEqual(t, len(frames), 4, "two joins and some uplinks")
	assert.Equal(t, byte(0x00), frames[0][0], "join request first")

	var ports []byte
	for _, f := range frames {
		if f[0] != 0x00 {
			ports = append(ports, f[1])
		}
	}
	require.NotEmpty(t, ports)
	assert.Equal(t, byte(30), ports[0], "boot uplink")
	assert.Contains(t, ports, byte(31), "configured by the scripted downlink")

	stats := kernel.SystemStatistics().Snapshot()
	assert.Contains(t, stats, "counter")
}

func TestRunRejectsBadBoard(t *testing.T) {
	cfg := config.Default()
	cfg.Board = "nope"
	host := hal.NewHost(hal.HostConfig{DIO0: 26, Output: io.Discard})

	err := Run(context.Background(), host, cfg, Options{Logger: logging.Discard()})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestPanicLines(t *testing.T) {
	lines := panicLines(kernel.PanicInfo{Task: "counter", Value: errors.New("boom"), Stack: []byte("a\n\nb\n")})
	assert.Equal(t, []string{"Node Panic:", "task: counter", "panic: boom", "stack:", "a", "b"}, lines)

	lines = panicLines(kernel.PanicInfo{Value: 1})
	assert.Equal(t, []string{"Node Panic:", "task: -", "panic: 1", "stack: unavailable"}, lines)
}
