package lorawan

import (
	"context"
	"errors"
	"fmt"
)

// EventCode is an event reported by the MAC stack.
type EventCode uint8

const (
	EvNone EventCode = iota
	EvJoining
	EvJoined
	EvJoinFailed
	EvRejoinFailed
	EvReset
	EvTxStart
	EvTxComplete
	EvRxComplete
	EvLinkDead
)

func (e EventCode) String() string {
	switch e {
	case EvNone:
		return "none"
	case EvJoining:
		return "joining"
	case EvJoined:
		return "joined"
	case EvJoinFailed:
		return "join-failed"
	case EvRejoinFailed:
		return "rejoin-failed"
	case EvReset:
		return "reset"
	case EvTxStart:
		return "tx-start"
	case EvTxComplete:
		return "tx-complete"
	case EvRxComplete:
		return "rx-complete"
	case EvLinkDead:
		return "link-dead"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

var (
	ErrNotJoined = errors.New("lorawan: not joined")
	ErrTxBusy    = errors.New("lorawan: transmission pending")
)

// StackHAL is the board surface the MAC stack runs on.
type StackHAL interface {
	Ticks() uint32
	// CheckTimer reports whether t has been reached. If not, it arms the
	// alarm for t so that the next Sleep returns in time.
	CheckTimer(t uint32) bool
	// WaitUntil blocks until t and returns how many ticks late it woke.
	WaitUntil(ctx context.Context, t uint32) uint32
	// Sleep blocks until the alarm, a radio interrupt or WakeUp. Radio
	// interrupts are dispatched to the stack before it returns.
	Sleep(ctx context.Context)
	WakeUp()

	// The critical section is not reentrant.
	EnterCritical()
	LeaveCritical()

	SPIWrite(cmd byte, buf []byte) error
	SPIRead(cmd byte, buf []byte) error
	PinRxTx(tx bool)
	// PinReset drives the reset line: 0 low, 1 high, 2 released.
	PinReset(val uint8)
	RSSICal() int8
}

// Stack is a callback-driven LoRaWAN MAC.
//
// The configuration methods (SetCredentials, Reset, StartJoin, SetTxData,
// TxPending and the On* registrations) are called with the critical section
// held. HandleIRQ is called from Sleep with the critical section held too.
// Callbacks must be invoked from RunLoop without holding it.
type Stack interface {
	Init(h StackHAL) error
	SetCredentials(p Parameters)
	Reset()
	StartJoin()
	SetTxData(port uint8, payload []byte, confirm bool) error
	TxPending() bool

	OnEvent(fn func(EventCode))
	OnMessage(fn func(port uint8, payload []byte))
	OnTxComplete(fn func(success bool))

	// HandleIRQ records that DIO line dio fired at tick t.
	HandleIRQ(dio uint8, t uint32)
	// RunLoop runs scheduled work until ctx is done.
	RunLoop(ctx context.Context)
}
