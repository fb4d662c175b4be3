package lorawan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"radionode/hal"
	"radionode/internal/logging"
	"radionode/nodeos/kernel"
)

const (
	notifyDIO uint32 = 1 << iota
	notifyTimer
	notifyWakeup
)

const defaultRSSICal = 10

type waitKind uint8

const (
	waitCheckIO waitKind = iota
	waitForAnyEvent
	waitForTimer
)

// RadioHAL implements StackHAL on top of a board HAL. It owns the radio
// pins, the SPI bus and the alarm that wakes the stack's background loop.
type RadioHAL struct {
	hw    hal.HAL
	pins  Pins
	log   *slog.Logger
	clock hal.Clock
	alarm hal.Alarm

	spi  hal.SPI
	nss  hal.GPIOPin
	rxtx hal.GPIOPin
	rst  hal.GPIOPin
	dio  [2]hal.GPIOPin

	stack Stack
	crit  sync.Mutex

	notify    atomic.Uint32
	wake      chan struct{}
	nextAlarm atomic.Int64 // host µs, 0 when disarmed
	dioNum    atomic.Uint32
	dioTime   atomic.Uint32
	rssiCal   atomic.Int32
}

func NewRadioHAL(hw hal.HAL, pins Pins, log *slog.Logger) *RadioHAL {
	if log == nil {
		log = slog.Default()
	}
	h := &RadioHAL{
		hw:    hw,
		pins:  pins,
		log:   log.With(logging.Component("radiohal")),
		clock: hw.Clock(),
		alarm: hw.NewAlarm(),
		wake:  make(chan struct{}, 1),
	}
	h.rssiCal.Store(defaultRSSICal)
	return h
}

// Init configures the radio pins and the SPI bus. NSS, DIO0 and DIO1 must be
// wired; missing them is fatal.
func (h *RadioHAL) Init() error {
	p := h.pins
	kernel.Assert(p.connected(p.NSS), "lorawan: %s has no NSS pin", p.Name)
	kernel.Assert(p.connected(p.DIO0), "lorawan: %s has no DIO0 pin", p.Name)
	kernel.Assert(p.connected(p.DIO1), "lorawan: %s has no DIO1 pin", p.Name)

	var err error
	if h.nss, err = h.output(p.NSS, true); err != nil {
		return err
	}
	if h.rxtx, err = h.output(p.RxTx, false); err != nil {
		return err
	}
	if h.rst, err = h.output(p.Reset, false); err != nil {
		return err
	}
	for i, id := range []int{p.DIO0, p.DIO1} {
		if h.dio[i], err = h.input(id); err != nil {
			return err
		}
	}

	h.spi, err = h.hw.SPI(p.SPIBus, hal.SPIConfig{
		SCLK:      p.SCLK,
		MOSI:      p.MOSI,
		MISO:      p.MISO,
		Frequency: p.SPIFreq,
	})
	if err != nil {
		return fmt.Errorf("lorawan: spi %s: %w", p.SPIBus, err)
	}
	h.log.Debug("radio pins ready", slog.String("board", p.Name))
	return nil
}

func (h *RadioHAL) pin(id int) hal.GPIOPin {
	pin := h.hw.GPIO().Pin(id)
	kernel.Assert(pin != nil, "lorawan: %s pin %d not available", h.pins.Name, id)
	return pin
}

func (h *RadioHAL) output(id int, level bool) (hal.GPIOPin, error) {
	if !h.pins.connected(id) {
		return nil, nil
	}
	pin := h.pin(id)
	if err := pin.Configure(hal.GPIOModeOutput, hal.GPIOPullNone); err != nil {
		return nil, fmt.Errorf("lorawan: configure %s: %w", pin.Name(), err)
	}
	if err := pin.Write(level); err != nil {
		return nil, fmt.Errorf("lorawan: write %s: %w", pin.Name(), err)
	}
	return pin, nil
}

func (h *RadioHAL) input(id int) (hal.GPIOPin, error) {
	pin := h.pin(id)
	if err := pin.Configure(hal.GPIOModeInput, hal.GPIOPullNone); err != nil {
		return nil, fmt.Errorf("lorawan: configure %s: %w", pin.Name(), err)
	}
	return pin, nil
}

// Start attaches the DIO interrupts and runs the stack's loop on a new
// goroutine until ctx is done. The returned channel closes when the loop
// has returned and the interrupts are detached.
func (h *RadioHAL) Start(ctx context.Context, stack Stack) <-chan struct{} {
	h.stack = stack
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer h.stop()
		stack.RunLoop(ctx)
	}()

	for i, pin := range h.dio {
		line := uint32(i)
		if err := pin.SetInterrupt(hal.GPIOEdgeRising, func() { h.dioIRQ(line) }); err != nil {
			h.log.Error("attach dio interrupt", slog.Int("dio", i), logging.Error(err))
		}
	}
	return done
}

func (h *RadioHAL) stop() {
	for _, pin := range h.dio {
		pin.SetInterrupt(hal.GPIOEdgeNone, nil)
	}
	h.alarm.Cancel()
}

func (h *RadioHAL) dioIRQ(line uint32) {
	h.dioTime.Store(h.Ticks())
	h.dioNum.Store(line)
	h.raise(notifyDIO)
}

func (h *RadioHAL) raise(bit uint32) {
	h.notify.Or(bit)
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// take returns and clears the pending notify bits, blocking for them when
// block is set. It returns 0 if ctx ends first.
func (h *RadioHAL) take(ctx context.Context, block bool) uint32 {
	for {
		if bits := h.notify.Swap(0); bits != 0 {
			return bits
		}
		if !block {
			return 0
		}
		select {
		case <-h.wake:
		case <-ctx.Done():
			return 0
		}
	}
}

// wait handles notifications until one satisfies kind. Only waitCheckIO
// returns without blocking; it reports whether anything was handled.
func (h *RadioHAL) wait(ctx context.Context, kind waitKind) bool {
	for {
		bits := h.take(ctx, kind != waitCheckIO)
		if bits == 0 {
			return false
		}
		var handled uint32
		switch {
		case bits&notifyWakeup != 0:
			handled = notifyWakeup
		case bits&notifyTimer != 0:
			handled = notifyTimer
		default:
			handled = notifyDIO
		}
		if rest := bits &^ handled; rest != 0 {
			h.notify.Or(rest)
		}

		switch handled {
		case notifyWakeup:
			if kind != waitForTimer {
				h.alarm.Cancel()
				return true
			}
		case notifyTimer:
			h.alarm.Cancel()
			// A stale shot seen while polling must not disarm a deadline
			// CheckTimer just set.
			if kind != waitCheckIO {
				h.nextAlarm.Store(0)
				return true
			}
		case notifyDIO:
			if kind != waitForTimer {
				h.alarm.Cancel()
			}
			h.EnterCritical()
			h.stack.HandleIRQ(uint8(h.dioNum.Load()), h.dioTime.Load())
			h.LeaveCritical()
			if kind != waitForTimer {
				return true
			}
		}
	}
}

func (h *RadioHAL) armTimer() {
	at := h.nextAlarm.Load()
	if at == 0 {
		return
	}
	d := at - h.clock.Micros()
	if d < alarmFloor {
		d = alarmFloor
	}
	h.alarm.Set(time.Duration(d)*time.Microsecond, func() { h.raise(notifyTimer) })
}

func (h *RadioHAL) Ticks() uint32 {
	return TicksAt(h.clock.Micros())
}

func (h *RadioHAL) CheckTimer(t uint32) bool {
	now := h.clock.Micros()
	at := OSTimeToHostTime(now, t)
	if at-now < expiryMargin {
		return true
	}
	h.nextAlarm.Store(at)
	return false
}

func (h *RadioHAL) WaitUntil(ctx context.Context, t uint32) uint32 {
	h.nextAlarm.Store(OSTimeToHostTime(h.clock.Micros(), t))
	h.armTimer()
	h.wait(ctx, waitForTimer)

	if late := h.Ticks() - t; late < lateThreshold {
		return late
	}
	return 0
}

func (h *RadioHAL) Sleep(ctx context.Context) {
	if h.wait(ctx, waitCheckIO) {
		return
	}
	h.armTimer()
	h.wait(ctx, waitForAnyEvent)
}

// WakeUp makes a pending or the next Sleep return.
func (h *RadioHAL) WakeUp() {
	h.raise(notifyWakeup)
}

func (h *RadioHAL) EnterCritical() { h.crit.Lock() }
func (h *RadioHAL) LeaveCritical() { h.crit.Unlock() }

// SPIWrite sends cmd followed by buf in one NSS-framed transaction.
func (h *RadioHAL) SPIWrite(cmd byte, buf []byte) error {
	w := make([]byte, 1+len(buf))
	w[0] = cmd
	copy(w[1:], buf)
	return h.transfer(w, nil)
}

// SPIRead sends cmd and clocks len(buf) bytes back into buf.
func (h *RadioHAL) SPIRead(cmd byte, buf []byte) error {
	w := make([]byte, 1+len(buf))
	w[0] = cmd
	r := make([]byte, len(w))
	if err := h.transfer(w, r); err != nil {
		return err
	}
	copy(buf, r[1:])
	return nil
}

func (h *RadioHAL) transfer(w, r []byte) error {
	h.nss.Write(false)
	err := h.spi.Tx(w, r)
	h.nss.Write(true)
	if err != nil {
		return fmt.Errorf("lorawan: spi transfer 0x%02x: %w", w[0], err)
	}
	return nil
}

func (h *RadioHAL) PinRxTx(tx bool) {
	if h.rxtx != nil {
		h.rxtx.Write(tx)
	}
}

func (h *RadioHAL) PinReset(val uint8) {
	if h.rst == nil {
		return
	}
	if val > 1 {
		h.rst.Configure(hal.GPIOModeInput, hal.GPIOPullNone)
		return
	}
	h.rst.Configure(hal.GPIOModeOutput, hal.GPIOPullNone)
	h.rst.Write(val == 1)
}

func (h *RadioHAL) RSSICal() int8 { return int8(h.rssiCal.Load()) }

func (h *RadioHAL) SetRSSICal(v int8) { h.rssiCal.Store(int32(v)) }
