package lorawan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radionode/internal/logging"
)

func newTestRadio(t *testing.T) (*RadioHAL, *scriptedStack, context.Context) {
	t.Helper()
	host := newTestHost()
	h := NewRadioHAL(host, PinsFor(BoardHost), logging.Discard())
	require.NoError(t, h.Init())

	ctx, cancel := context.WithCancel(context.Background())
	st := newScriptedStack()
	done := h.Start(ctx, st)
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, st, ctx
}

func TestRadioInitRequiresPins(t *testing.T) {
	for _, field := range []string{"nss", "dio0", "dio1"} {
		pins := PinsFor(BoardHost)
		switch field {
		case "nss":
			pins.NSS = NotConnected
		case "dio0":
			pins.DIO0 = NotConnected
		case "dio1":
			pins.DIO1 = NotConnected
		}
		h := NewRadioHAL(newTestHost(), pins, logging.Discard())
		assert.Panics(t, func() { h.Init() }, field)
	}
}

func TestRadioInitPinLevels(t *testing.T) {
	host := newTestHost()
	pins := PinsFor(BoardHost)
	h := NewRadioHAL(host, pins, logging.Discard())
	require.NoError(t, h.Init())

	nss, _ := host.Pin(pins.NSS).Read()
	assert.True(t, nss, "NSS idles high")
	rst, _ := host.Pin(pins.Reset).Read()
	assert.False(t, rst)
	assert.Nil(t, h.rxtx, "rxtx is not wired on this board")
	assert.Equal(t, int8(defaultRSSICal), h.RSSICal())
}

func TestRadioSPIRoundTrip(t *testing.T) {
	h, _, _ := newTestRadio(t)

	var version [1]byte
	require.NoError(t, h.SPIRead(0x42, version[:]))
	assert.Equal(t, byte(0x12), version[0])

	require.NoError(t, h.SPIWrite(0x80|0x0d, []byte{0x00}))
	var reg [1]byte
	require.NoError(t, h.SPIRead(0x0d, reg[:]))
	assert.Equal(t, byte(0x00), reg[0])

	require.NoError(t, h.SPIWrite(0x80|0x33, []byte{0x27}))
	require.NoError(t, h.SPIRead(0x33, reg[:]))
	assert.Equal(t, byte(0x27), reg[0])
}

func TestRadioSleepDispatchesDIO(t *testing.T) {
	h, st, ctx := newTestRadio(t)

	// Push a frame and start TX; the emulated radio raises DIO0 on TxDone.
	require.NoError(t, h.SPIWrite(0x80|0x00, []byte("hi")))
	require.NoError(t, h.SPIWrite(0x80|0x01, []byte{0x83}))

	sleepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h.Sleep(sleepCtx)

	require.Equal(t, 1, st.irqCount())
	assert.Equal(t, uint8(0), st.irqs[0].dio)
	assert.NotZero(t, st.irqs[0].ticks)
}

func TestRadioCheckTimerArmsAlarm(t *testing.T) {
	h, _, ctx := newTestRadio(t)

	assert.True(t, h.CheckTimer(h.Ticks()), "now counts as expired")
	assert.True(t, h.CheckTimer(h.Ticks()-100), "past counts as expired")

	target := h.Ticks() + DurationToTicks(20*time.Millisecond)
	assert.False(t, h.CheckTimer(target))
	assert.NotZero(t, h.nextAlarm.Load())

	start := time.Now()
	h.Sleep(ctx)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Zero(t, h.nextAlarm.Load(), "timer firing disarms")
}

func TestRadioWaitUntil(t *testing.T) {
	h, _, ctx := newTestRadio(t)

	target := h.Ticks() + DurationToTicks(10*time.Millisecond)
	late := h.WaitUntil(ctx, target)
	assert.GreaterOrEqual(t, h.Ticks()-target, late)
	assert.Less(t, late, DurationToTicks(time.Second))

	// A time already passed returns at once.
	start := time.Now()
	h.WaitUntil(ctx, h.Ticks()-10)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRadioWakeUpEndsSleep(t *testing.T) {
	h, _, ctx := newTestRadio(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		h.WakeUp()
	}()
	sleepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h.Sleep(sleepCtx)
	assert.NoError(t, sleepCtx.Err())
}

func TestRadioSleepReturnsOnCancel(t *testing.T) {
	h, _, ctx := newTestRadio(t)

	sleepCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	h.Sleep(sleepCtx)
	assert.Error(t, sleepCtx.Err())
}

func TestRadioPinReset(t *testing.T) {
	host := newTestHost()
	pins := PinsFor(BoardHost)
	h := NewRadioHAL(host, pins, logging.Discard())
	require.NoError(t, h.Init())

	h.PinReset(1)
	level, _ := host.Pin(pins.Reset).Read()
	assert.True(t, level)

	h.PinReset(0)
	level, _ = host.Pin(pins.Reset).Read()
	assert.False(t, level)

	h.PinReset(2)
	assert.Error(t, host.Pin(pins.Reset).Write(true), "released line is an input")

	h.PinRxTx(true)
}
