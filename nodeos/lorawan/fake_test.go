package lorawan

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"radionode/hal"
)

type irq struct {
	dio   uint8
	ticks uint32
}

type sentFrame struct {
	port    uint8
	payload []byte
	confirm bool
}

// scriptedStack records what the driver asks for; tests fire its callbacks
// by hand.
type scriptedStack struct {
	mu        sync.Mutex
	hal       StackHAL
	params    Parameters
	onEvent   func(EventCode)
	onMessage func(uint8, []byte)
	onTx      func(bool)
	resets    int
	joins     int
	txPending bool
	txErr     error
	sent      []sentFrame
	irqs      []irq

	started chan string
}

func newScriptedStack() *scriptedStack {
	return &scriptedStack{started: make(chan string, 16)}
}

func (s *scriptedStack) Init(h StackHAL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hal = h
	return nil
}

func (s *scriptedStack) SetCredentials(p Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

func (s *scriptedStack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.txPending = false
}

func (s *scriptedStack) StartJoin() {
	s.mu.Lock()
	s.joins++
	s.mu.Unlock()
	s.started <- "join"
}

func (s *scriptedStack) SetTxData(port uint8, payload []byte, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return s.txErr
	}
	s.sent = append(s.sent, sentFrame{port: port, payload: append([]byte(nil), payload...), confirm: confirm})
	s.started <- "tx"
	return nil
}

func (s *scriptedStack) TxPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txPending
}

func (s *scriptedStack) OnEvent(fn func(EventCode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

func (s *scriptedStack) OnMessage(fn func(uint8, []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

func (s *scriptedStack) OnTxComplete(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTx = fn
}

func (s *scriptedStack) HandleIRQ(dio uint8, t uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.irqs = append(s.irqs, irq{dio: dio, ticks: t})
}

func (s *scriptedStack) RunLoop(ctx context.Context) { <-ctx.Done() }

func (s *scriptedStack) event(code EventCode) {
	s.mu.Lock()
	fn := s.onEvent
	s.mu.Unlock()
	fn(code)
}

func (s *scriptedStack) message(port uint8, payload string) {
	s.mu.Lock()
	fn := s.onMessage
	s.mu.Unlock()
	fn(port, []byte(payload))
}

func (s *scriptedStack) txComplete(ok bool) {
	s.mu.Lock()
	fn := s.onTx
	s.mu.Unlock()
	fn(ok)
}

func (s *scriptedStack) irqCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.irqs)
}

func (s *scriptedStack) awaitStarted(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-s.started:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("stack never saw %s", want)
	}
}

func newTestHost() *hal.Host {
	return hal.NewHost(hal.HostConfig{
		DIO0:         26,
		Airtime:      5 * time.Millisecond,
		HardwareAddr: [6]byte{0x00, 0x4c, 0xfe, 0x74, 0xad, 0x2f},
		Output:       io.Discard,
	})
}

var testParams = func() Parameters {
	p, err := ParseParameters("70B3D57ED00306F7", "8214F6A2800C9FCD9B26BBE28D5CD057", "004CFEED74AD2FA6")
	if err != nil {
		panic(err)
	}
	return p
}()
