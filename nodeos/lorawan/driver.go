package lorawan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"radionode/hal"
	"radionode/internal/logging"
	"radionode/nodeos/kernel"
)

const (
	inboxCapacity    = 4
	eventSendTimeout = 100 * time.Millisecond

	DefaultOperationTimeout = 60 * time.Second
)

// WaitingReason is the blocking operation the driver is waiting on.
type WaitingReason uint8

const (
	WaitingNone WaitingReason = iota
	WaitingForJoin
	WaitingForTransmission
)

func (r WaitingReason) String() string {
	switch r {
	case WaitingNone:
		return "none"
	case WaitingForJoin:
		return "join"
	case WaitingForTransmission:
		return "transmission"
	default:
		return fmt.Sprintf("waiting(%d)", uint8(r))
	}
}

type eventKind uint8

const (
	eventJoinCompleted eventKind = iota + 1
	eventJoinFailed
	eventMessageReceived
	eventTransmissionCompleted
	eventTransmissionFailed
)

func (k eventKind) String() string {
	switch k {
	case eventJoinCompleted:
		return "join-completed"
	case eventJoinFailed:
		return "join-failed"
	case eventMessageReceived:
		return "message-received"
	case eventTransmissionCompleted:
		return "transmission-completed"
	case eventTransmissionFailed:
		return "transmission-failed"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// bridgeEvent carries a stack outcome to the operation op it was claimed for.
type bridgeEvent struct {
	op      uint64
	kind    eventKind
	port    uint8
	payload []byte
}

// Options tune a Driver. Zero values pick the defaults.
type Options struct {
	Logger *slog.Logger
	// OperationTimeout bounds Join and TransmitMessage. Negative waits
	// without bound; zero selects DefaultOperationTimeout.
	OperationTimeout time.Duration
	// RSSICal overrides the radio's RSSI calibration when non-zero.
	RSSICal int8
}

// Driver turns the callback-driven Stack into blocking Join and
// TransmitMessage calls. At most one Driver exists at a time because the
// stack reports through package-level callbacks.
type Driver struct {
	radio   *RadioHAL
	stack   Stack
	inbox   *kernel.Inbox[bridgeEvent]
	log     *slog.Logger
	timeout time.Duration

	// reason and op are guarded by the radio critical section. op numbers
	// the latest operation; events claimed for an older one are stale.
	reason WaitingReason
	op     uint64

	listenerMu sync.Mutex
	listener   Listener

	runCtx context.Context
	cancel context.CancelFunc
	done   <-chan struct{}
}

var instance atomic.Pointer[Driver]

// Instance returns the live driver, or nil.
func Instance() *Driver { return instance.Load() }

// Instantiate wires stack to the radio of board and starts its background
// loop, which runs until ctx is done or Close is called. A second live
// instance is a programming error.
func Instantiate(ctx context.Context, hw hal.HAL, board Board, params Parameters, stack Stack, opts Options) (*Driver, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.OperationTimeout
	switch {
	case timeout == 0:
		timeout = DefaultOperationTimeout
	case timeout < 0:
		timeout = kernel.Forever
	}
	d := &Driver{
		stack:   stack,
		log:     log.With(logging.Component("lorawan")),
		timeout: timeout,
	}
	pins := PinsFor(board)
	kernel.Assert(instance.CompareAndSwap(nil, d), "lorawan: driver already instantiated")

	d.radio = NewRadioHAL(hw, pins, log)
	if err := d.radio.Init(); err != nil {
		instance.Store(nil)
		return nil, err
	}
	if opts.RSSICal != 0 {
		d.radio.SetRSSICal(opts.RSSICal)
	}

	d.radio.EnterCritical()
	stack.SetCredentials(params)
	stack.OnEvent(onStackEvent)
	stack.OnMessage(onStackMessage)
	stack.OnTxComplete(onStackTxComplete)
	d.radio.LeaveCritical()

	if err := stack.Init(d.radio); err != nil {
		instance.Store(nil)
		return nil, fmt.Errorf("lorawan: init stack: %w", err)
	}

	d.inbox = kernel.NewInbox[bridgeEvent](inboxCapacity)
	d.runCtx, d.cancel = context.WithCancel(ctx)
	d.done = d.radio.Start(d.runCtx, stack)
	d.Reset()

	d.log.Info("driver ready", slog.String("board", pins.Name), slog.String("params", params.String()))
	return d, nil
}

// Close stops the background loop and releases the singleton. Blocked
// operations return as failed.
func (d *Driver) Close() {
	d.cancel()
	<-d.done
	instance.CompareAndSwap(d, nil)
}

// Join starts an over-the-air activation and blocks until the stack reports
// the outcome. It returns false on failure, timeout or when ctx ends.
func (d *Driver) Join(ctx context.Context) bool {
	log := d.log.With(logging.Op(uuid.New()))

	d.radio.EnterCritical()
	busy := d.reason
	var op uint64
	if busy == WaitingNone {
		op = d.begin(WaitingForJoin)
		d.stack.StartJoin()
		d.radio.WakeUp()
	}
	d.radio.LeaveCritical()
	kernel.Assert(busy == WaitingNone, "lorawan: join while waiting for %s", busy)

	start := time.Now()
	ctx, cancel := d.operationContext(ctx)
	defer cancel()

	for {
		ev, ok := d.await(ctx, WaitingForJoin, op)
		if !ok {
			log.Warn("join abandoned", logging.Elapsed(start), logging.Error(ctx.Err()))
			return false
		}
		switch ev.kind {
		case eventJoinCompleted, eventJoinFailed:
			log.Debug("join event", slog.String("event", ev.kind.String()), logging.Elapsed(start))
			return ev.kind == eventJoinCompleted
		default:
			log.Warn("unexpected event", slog.String("event", ev.kind.String()))
		}
	}
}

// TransmitMessage sends payload on port and blocks until the stack reports
// completion. Downlinks received meanwhile go to the listener first. A
// transmission already in progress fails immediately.
func (d *Driver) TransmitMessage(ctx context.Context, payload []byte, port uint8, confirm bool) Response {
	log := d.log.With(logging.Op(uuid.New()), logging.Port(port))

	d.radio.EnterCritical()
	if d.reason != WaitingNone || d.stack.TxPending() {
		reason := d.reason
		d.radio.LeaveCritical()
		log.Debug("transmit rejected", slog.String("waiting", reason.String()))
		return ResponseTransmissionFailed
	}
	op := d.begin(WaitingForTransmission)
	d.stack.OnTxComplete(onStackTxComplete)
	if err := d.stack.SetTxData(port, payload, confirm); err != nil {
		d.reason = WaitingNone
		d.radio.LeaveCritical()
		log.Warn("transmit rejected by stack", logging.Error(err))
		return ResponseTransmissionFailed
	}
	d.radio.WakeUp()
	d.radio.LeaveCritical()

	start := time.Now()
	ctx, cancel := d.operationContext(ctx)
	defer cancel()

	for {
		ev, ok := d.await(ctx, WaitingForTransmission, op)
		if !ok {
			log.Warn("transmit abandoned", logging.Elapsed(start), logging.Error(ctx.Err()))
			return ResponseTransmissionFailed
		}
		switch ev.kind {
		case eventMessageReceived:
			d.deliver(ev, log)
		case eventTransmissionCompleted:
			log.Debug("transmit done", slog.Bool("confirm", confirm), logging.Elapsed(start))
			return ResponseSuccess
		case eventTransmissionFailed:
			log.Debug("transmit failed", slog.Bool("confirm", confirm), logging.Elapsed(start))
			return ResponseTransmissionFailed
		default:
			log.Warn("unexpected event", slog.String("event", ev.kind.String()))
			d.release(op)
			return ResponseUnexpected
		}
	}
}

// operationContext bounds one operation by the timeout and by the driver's
// own lifetime.
func (d *Driver) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if d.timeout < 0 {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	stop := context.AfterFunc(d.runCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// begin starts operation mine and returns its number. The caller holds the
// critical section.
func (d *Driver) begin(mine WaitingReason) uint64 {
	d.op++
	d.reason = mine
	return d.op
}

// release ends op if it is still outstanding.
func (d *Driver) release(op uint64) {
	d.radio.EnterCritical()
	defer d.radio.LeaveCritical()
	if d.op == op {
		d.reason = WaitingNone
	}
}

// await receives the next event of operation op, dropping events left over
// from earlier operations. When ctx ends it withdraws the operation, unless a
// callback has already claimed its outcome, in which case that event is
// still collected.
func (d *Driver) await(ctx context.Context, mine WaitingReason, op uint64) (bridgeEvent, bool) {
	if ev, ok := d.receive(ctx, op); ok {
		return ev, true
	}

	d.radio.EnterCritical()
	withdrawn := d.op == op && d.reason == mine
	if withdrawn {
		d.reason = WaitingNone
		d.inbox.Reset()
	}
	d.radio.LeaveCritical()
	if withdrawn {
		return bridgeEvent{}, false
	}
	late, cancel := context.WithTimeout(context.Background(), eventSendTimeout)
	defer cancel()
	return d.receive(late, op)
}

func (d *Driver) receive(ctx context.Context, op uint64) (bridgeEvent, bool) {
	for {
		ev, ok := d.inbox.Receive(ctx, kernel.Forever)
		if !ok {
			return bridgeEvent{}, false
		}
		if ev.op == op {
			return ev, true
		}
		d.log.Debug("stale bridge event dropped", slog.String("event", ev.kind.String()))
	}
}

func (d *Driver) deliver(ev bridgeEvent, log *slog.Logger) {
	d.listenerMu.Lock()
	l := d.listener
	d.listenerMu.Unlock()
	if l == nil {
		log.Warn("downlink dropped, no listener", logging.Port(ev.port), slog.Int("bytes", len(ev.payload)))
		return
	}
	l.OnMessageReceived(ev.payload, ev.port)
}

// InstallListener sets the downlink listener. Only the first call counts.
func (d *Driver) InstallListener(l Listener) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	if d.listener != nil {
		d.log.Error("listener already installed")
		return
	}
	d.listener = l
}

// Reset resets the stack and forgets any outstanding operation.
func (d *Driver) Reset() {
	d.radio.EnterCritical()
	defer d.radio.LeaveCritical()
	d.stack.Reset()
	d.reason = WaitingNone
	d.inbox.Reset()
}

func (d *Driver) SetRSSICal(v int8) { d.radio.SetRSSICal(v) }

// Waiting reports the operation currently outstanding.
func (d *Driver) Waiting() WaitingReason {
	d.radio.EnterCritical()
	defer d.radio.LeaveCritical()
	return d.reason
}

// claim reports whether the outstanding operation waits for want and
// returns its number. clear ends the operation.
func (d *Driver) claim(want WaitingReason, clear bool) (uint64, bool) {
	d.radio.EnterCritical()
	defer d.radio.LeaveCritical()
	if d.reason != want {
		return 0, false
	}
	if clear {
		d.reason = WaitingNone
	}
	return d.op, true
}

func (d *Driver) post(ev bridgeEvent) {
	if !d.inbox.Send(ev, eventSendTimeout) {
		d.log.Warn("bridge event dropped", slog.String("event", ev.kind.String()))
	}
}

func (d *Driver) stackEvent(code EventCode) {
	var kind eventKind
	switch code {
	case EvJoined:
		kind = eventJoinCompleted
	case EvJoinFailed, EvRejoinFailed, EvReset:
		kind = eventJoinFailed
	}
	if kind == 0 {
		d.log.Debug("stack event ignored", slog.String("event", code.String()))
		return
	}
	op, ok := d.claim(WaitingForJoin, true)
	if !ok {
		d.log.Debug("stack event ignored", slog.String("event", code.String()))
		return
	}
	d.post(bridgeEvent{op: op, kind: kind})
}

func (d *Driver) stackMessage(port uint8, payload []byte) {
	op, ok := d.claim(WaitingForTransmission, false)
	if !ok {
		d.log.Debug("downlink ignored", logging.Port(port))
		return
	}
	d.post(bridgeEvent{
		op:      op,
		kind:    eventMessageReceived,
		port:    port,
		payload: append([]byte(nil), payload...),
	})
}

func (d *Driver) stackTxComplete(success bool) {
	op, ok := d.claim(WaitingForTransmission, true)
	if !ok {
		d.log.Debug("tx completion ignored", slog.Bool("success", success))
		return
	}
	kind := eventTransmissionFailed
	if success {
		kind = eventTransmissionCompleted
	}
	d.post(bridgeEvent{op: op, kind: kind})
}

func onStackEvent(code EventCode) {
	if d := instance.Load(); d != nil {
		d.stackEvent(code)
	}
}

func onStackMessage(port uint8, payload []byte) {
	if d := instance.Load(); d != nil {
		d.stackMessage(port, payload)
	}
}

func onStackTxComplete(success bool) {
	if d := instance.Load(); d != nil {
		d.stackTxComplete(success)
	}
}
