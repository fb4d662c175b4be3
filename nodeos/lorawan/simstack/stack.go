// Package simstack is a LoRaWAN MAC stand-in for the host build. It keys the
// emulated radio over SPI like a real MAC would and answers from a simulated
// network instead of decoding over-the-air frames.
package simstack

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"radionode/internal/logging"
	"radionode/nodeos/lorawan"
)

const (
	regFifo      = 0x00
	regOpMode    = 0x01
	regIrqFlags  = 0x12
	regRSSIValue = 0x1b
	regVersion   = 0x42

	writeBit     = 0x80
	modeLoRa     = 0x80
	modeSleep    = 0x00
	modeStandby  = 0x01
	modeTx       = 0x03
	irqTxDone    = 0x08
	radioVersion = 0x12

	rssiOffset = -157

	mhdrJoinRequest = 0x00
	mhdrUnconfirmed = 0x40
	mhdrConfirmed   = 0x80
)

var ErrRadioNotFound = errors.New("simstack: radio not found")

// Config shapes the simulated network.
type Config struct {
	// JoinFailures is how many join attempts go unanswered before one is
	// accepted.
	JoinFailures    int
	JoinAcceptDelay time.Duration
	RxDelay         time.Duration
	// TxTimeout fails a transmission whose TxDone interrupt never came.
	TxTimeout time.Duration
	Network   Network
	Logger    *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		JoinAcceptDelay: 500 * time.Millisecond,
		RxDelay:         200 * time.Millisecond,
		TxTimeout:       2 * time.Second,
	}
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseJoinTx
	phaseJoinAccept
	phaseDataTx
	phaseRxWindow
)

type job struct {
	id  uint64
	at  uint32
	run func(ctx context.Context, at uint32)
}

type pendingTx struct {
	port    uint8
	payload []byte
	confirm bool
}

// Stack implements lorawan.Stack. Apart from cfg and log, its state is
// guarded by the HAL critical section.
type Stack struct {
	cfg Config
	log *slog.Logger

	hal       lorawan.StackHAL
	params    lorawan.Parameters
	onEvent   func(lorawan.EventCode)
	onMessage func(uint8, []byte)
	onTx      func(bool)

	jobs      []job
	lastJob   uint64
	timeoutID uint64

	phase    phase
	joined   bool
	attempts int
	devNonce uint16
	fcntUp   uint16
	tx       *pendingTx
}

func New(cfg Config) *Stack {
	def := DefaultConfig()
	if cfg.JoinAcceptDelay <= 0 {
		cfg.JoinAcceptDelay = def.JoinAcceptDelay
	}
	if cfg.RxDelay <= 0 {
		cfg.RxDelay = def.RxDelay
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = def.TxTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Stack{cfg: cfg, log: log.With(logging.Component("simstack"))}
}

// Init resets the radio and checks that it answers.
func (s *Stack) Init(h lorawan.StackHAL) error {
	s.hal = h

	h.PinReset(0)
	time.Sleep(time.Millisecond)
	h.PinReset(2)
	time.Sleep(5 * time.Millisecond)

	var v [1]byte
	if err := h.SPIRead(regVersion, v[:]); err != nil {
		return fmt.Errorf("simstack: read version: %w", err)
	}
	if v[0] != radioVersion {
		return fmt.Errorf("%w: version 0x%02x", ErrRadioNotFound, v[0])
	}
	return h.SPIWrite(regOpMode|writeBit, []byte{modeLoRa | modeSleep})
}

func (s *Stack) SetCredentials(p lorawan.Parameters) { s.params = p }

func (s *Stack) OnEvent(fn func(lorawan.EventCode)) { s.onEvent = fn }
func (s *Stack) OnMessage(fn func(uint8, []byte))   { s.onMessage = fn }
func (s *Stack) OnTxComplete(fn func(success bool)) { s.onTx = fn }

// Reset drops the session and every scheduled job.
func (s *Stack) Reset() {
	s.jobs = nil
	s.timeoutID = 0
	s.phase = phaseIdle
	s.joined = false
	s.fcntUp = 0
	s.tx = nil
}

func (s *Stack) StartJoin() {
	if s.phase == phaseJoinTx || s.phase == phaseJoinAccept {
		return
	}
	s.joined = false
	s.phase = phaseJoinTx
	s.schedule(s.hal.Ticks(), s.joinRequest)
}

func (s *Stack) SetTxData(port uint8, payload []byte, confirm bool) error {
	if !s.joined {
		return lorawan.ErrNotJoined
	}
	if s.tx != nil {
		return lorawan.ErrTxBusy
	}
	s.tx = &pendingTx{port: port, payload: append([]byte(nil), payload...), confirm: confirm}
	s.phase = phaseDataTx
	s.schedule(s.hal.Ticks(), s.dataRequest)
	return nil
}

func (s *Stack) TxPending() bool { return s.tx != nil }

// HandleIRQ acknowledges TxDone and opens the matching receive window.
func (s *Stack) HandleIRQ(dio uint8, t uint32) {
	var flags [1]byte
	if err := s.hal.SPIRead(regIrqFlags, flags[:]); err != nil {
		s.log.Error("read irq flags", logging.Error(err))
		return
	}
	if flags[0]&irqTxDone == 0 {
		s.log.Debug("spurious irq", slog.Int("dio", int(dio)), slog.Int("flags", int(flags[0])))
		return
	}
	s.hal.SPIWrite(regIrqFlags|writeBit, []byte{irqTxDone})
	s.hal.PinRxTx(false)
	s.cancel(s.timeoutID)

	switch s.phase {
	case phaseJoinTx:
		s.phase = phaseJoinAccept
		s.schedule(t+lorawan.DurationToTicks(s.cfg.JoinAcceptDelay), s.joinAccept)
	case phaseDataTx:
		s.phase = phaseRxWindow
		s.schedule(t+lorawan.DurationToTicks(s.cfg.RxDelay), s.rxWindow)
	}
}

// RunLoop runs jobs as they fall due and sleeps in between.
func (s *Stack) RunLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if j, ok := s.due(); ok {
			j.run(ctx, j.at)
			continue
		}
		s.hal.Sleep(ctx)
	}
}

func (s *Stack) due() (job, bool) {
	s.hal.EnterCritical()
	defer s.hal.LeaveCritical()
	if len(s.jobs) == 0 {
		return job{}, false
	}
	j := s.jobs[0]
	if !s.hal.CheckTimer(j.at) {
		return job{}, false
	}
	s.jobs = s.jobs[1:]
	return j, true
}

// schedule keeps jobs ordered by deadline across the tick wrap.
func (s *Stack) schedule(at uint32, run func(context.Context, uint32)) uint64 {
	s.lastJob++
	j := job{id: s.lastJob, at: at, run: run}
	i := len(s.jobs)
	for i > 0 && int32(s.jobs[i-1].at-at) > 0 {
		i--
	}
	s.jobs = append(s.jobs, job{})
	copy(s.jobs[i+1:], s.jobs[i:])
	s.jobs[i] = j
	return j.id
}

func (s *Stack) cancel(id uint64) {
	for i, j := range s.jobs {
		if j.id == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return
		}
	}
}

// transmitLocked loads frame into the radio and starts TX.
func (s *Stack) transmitLocked(frame []byte) error {
	var rssi [1]byte
	if err := s.hal.SPIRead(regRSSIValue, rssi[:]); err == nil {
		s.log.Debug("channel check", slog.Int("rssi", rssiOffset+int(rssi[0])+int(s.hal.RSSICal())))
	}

	s.hal.PinRxTx(true)
	if err := s.hal.SPIWrite(regOpMode|writeBit, []byte{modeLoRa | modeStandby}); err != nil {
		return err
	}
	if err := s.hal.SPIWrite(regFifo|writeBit, frame); err != nil {
		return err
	}
	if err := s.hal.SPIWrite(regOpMode|writeBit, []byte{modeLoRa | modeTx}); err != nil {
		return err
	}
	s.timeoutID = s.schedule(s.hal.Ticks()+lorawan.DurationToTicks(s.cfg.TxTimeout), s.txTimeout)
	return nil
}

func (s *Stack) joinRequest(ctx context.Context, _ uint32) {
	s.emit(lorawan.EvJoining)

	s.hal.EnterCritical()
	s.attempts++
	s.devNonce++
	frame := make([]byte, 0, 19)
	frame = append(frame, mhdrJoinRequest)
	frame = append(frame, s.params.AppEUI[:]...)
	frame = append(frame, s.params.DevEUI[:]...)
	frame = binary.LittleEndian.AppendUint16(frame, s.devNonce)
	err := s.transmitLocked(frame)
	if err != nil {
		s.phase = phaseIdle
	}
	attempt := s.attempts
	s.hal.LeaveCritical()

	if err != nil {
		s.log.Error("join request", logging.Error(err))
		s.emit(lorawan.EvJoinFailed)
		return
	}
	s.log.Debug("join request sent", slog.Int("attempt", attempt))
}

func (s *Stack) joinAccept(ctx context.Context, _ uint32) {
	s.hal.EnterCritical()
	accepted := s.attempts > s.cfg.JoinFailures
	s.phase = phaseIdle
	s.joined = accepted
	s.fcntUp = 0
	s.hal.LeaveCritical()

	if accepted {
		s.emit(lorawan.EvJoined)
	} else {
		s.emit(lorawan.EvJoinFailed)
	}
}

func (s *Stack) dataRequest(ctx context.Context, _ uint32) {
	s.hal.EnterCritical()
	tx := s.tx
	if tx == nil {
		s.hal.LeaveCritical()
		return
	}
	mhdr := byte(mhdrUnconfirmed)
	if tx.confirm {
		mhdr = mhdrConfirmed
	}
	frame := make([]byte, 0, 4+len(tx.payload))
	frame = append(frame, mhdr, tx.port)
	frame = binary.LittleEndian.AppendUint16(frame, s.fcntUp)
	frame = append(frame, tx.payload...)
	err := s.transmitLocked(frame)
	if err != nil {
		s.tx = nil
		s.phase = phaseIdle
	}
	s.hal.LeaveCritical()

	if err != nil {
		s.log.Error("uplink", logging.Error(err), logging.Port(tx.port))
		s.txDone(false)
		return
	}
	s.emit(lorawan.EvTxStart)
}

func (s *Stack) rxWindow(ctx context.Context, at uint32) {
	if late := s.hal.WaitUntil(ctx, at); late > 0 {
		s.log.Debug("rx window late", slog.Int("ticks", int(late)))
	}

	s.hal.EnterCritical()
	tx := s.tx
	s.tx = nil
	s.phase = phaseIdle
	s.fcntUp++
	s.hal.LeaveCritical()
	if tx == nil {
		return
	}

	if s.cfg.Network != nil {
		if down, ok := s.cfg.Network.Uplink(tx.port, tx.payload, tx.confirm); ok {
			s.emit(lorawan.EvRxComplete)
			s.message(down.Port, down.Payload)
		}
	}
	s.emit(lorawan.EvTxComplete)
	s.txDone(true)
}

func (s *Stack) txTimeout(ctx context.Context, _ uint32) {
	s.hal.EnterCritical()
	ph := s.phase
	s.phase = phaseIdle
	s.tx = nil
	s.hal.PinRxTx(false)
	s.hal.SPIWrite(regOpMode|writeBit, []byte{modeLoRa | modeStandby})
	s.hal.LeaveCritical()

	s.log.Warn("tx done interrupt missing")
	switch ph {
	case phaseJoinTx:
		s.emit(lorawan.EvJoinFailed)
	case phaseDataTx:
		s.txDone(false)
	}
}

func (s *Stack) emit(code lorawan.EventCode) {
	s.hal.EnterCritical()
	fn := s.onEvent
	s.hal.LeaveCritical()
	s.log.Debug("event", slog.String("event", code.String()))
	if fn != nil {
		fn(code)
	}
}

func (s *Stack) message(port uint8, payload []byte) {
	s.hal.EnterCritical()
	fn := s.onMessage
	s.hal.LeaveCritical()
	if fn != nil {
		fn(port, payload)
	}
}

func (s *Stack) txDone(ok bool) {
	s.hal.EnterCritical()
	fn := s.onTx
	s.hal.LeaveCritical()
	if fn != nil {
		fn(ok)
	}
}

var _ lorawan.Stack = (*Stack)(nil)
