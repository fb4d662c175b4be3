package simstack

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radionode/hal"
	"radionode/internal/logging"
	"radionode/nodeos/lorawan"
)

func testParams(t *testing.T) lorawan.Parameters {
	t.Helper()
	p, err := lorawan.ParseParameters("70B3D57ED00306F7", "8214F6A2800C9FCD9B26BBE28D5CD057", "004CFEED74AD2FA6")
	require.NoError(t, err)
	return p
}

func fastConfig() Config {
	return Config{
		JoinAcceptDelay: 20 * time.Millisecond,
		RxDelay:         10 * time.Millisecond,
		TxTimeout:       300 * time.Millisecond,
		Logger:          logging.Discard(),
	}
}

func startNode(t *testing.T, dio0 int, cfg Config) (*lorawan.Driver, *hal.Host) {
	t.Helper()
	host := hal.NewHost(hal.HostConfig{
		DIO0:         dio0,
		Airtime:      5 * time.Millisecond,
		HardwareAddr: [6]byte{0x00, 0x4c, 0xfe, 0x74, 0xad, 0x2f},
		Output:       io.Discard,
	})
	d, err := lorawan.Instantiate(context.Background(), host, lorawan.BoardHost, testParams(t), New(cfg),
		lorawan.Options{Logger: logging.Discard(), OperationTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, host
}

func TestJoinAfterFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.JoinFailures = 1
	d, host := startNode(t, 26, cfg)

	assert.False(t, d.Join(context.Background()))
	assert.Equal(t, lorawan.WaitingNone, d.Waiting())
	assert.True(t, d.Join(context.Background()))

	frames := host.Radio().Frames()
	require.Len(t, frames, 2)
	join := frames[1]
	require.Len(t, join, 19)
	assert.Equal(t, byte(mhdrJoinRequest), join[0])
	p := testParams(t)
	assert.Equal(t, p.AppEUI[:], join[1:9])
	assert.Equal(t, p.DevEUI[:], join[9:17])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(join[17:]))
}

func TestTransmitBeforeJoinFails(t *testing.T) {
	d, host := startNode(t, 26, fastConfig())

	assert.Equal(t, lorawan.ResponseTransmissionFailed, d.TransmitMessage(context.Background(), []byte("boot"), 30, false))
	assert.Empty(t, host.Radio().Frames())
}

func TestTransmitWithEchoDownlink(t *testing.T) {
	cfg := fastConfig()
	cfg.Network = Echo(map[uint8]uint8{31: 21})
	d, host := startNode(t, 26, cfg)
	require.True(t, d.Join(context.Background()))

	var (
		mu    sync.Mutex
		downs []Downlink
	)
	d.InstallListener(lorawan.ListenerFunc(func(payload []byte, port uint8) {
		mu.Lock()
		defer mu.Unlock()
		downs = append(downs, Downlink{Port: port, Payload: append([]byte(nil), payload...)})
	}))

	assert.Equal(t, lorawan.ResponseSuccess, d.TransmitMessage(context.Background(), []byte("5"), 31, true))
	assert.Equal(t, lorawan.ResponseSuccess, d.TransmitMessage(context.Background(), []byte("6"), 32, false))

	mu.Lock()
	assert.Equal(t, []Downlink{{Port: 21, Payload: []byte("5")}}, downs)
	mu.Unlock()

	frames := host.Radio().Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, []byte{mhdrConfirmed, 31, 0, 0, '5'}, frames[1])
	assert.Equal(t, []byte{mhdrUnconfirmed, 32, 1, 0, '6'}, frames[2])
	assert.Equal(t, lorawan.WaitingNone, d.Waiting())
}

func TestMissingTxDoneFailsJoin(t *testing.T) {
	// The radio raises TxDone on a pin the driver does not listen to.
	d, _ := startNode(t, 2, fastConfig())

	start := time.Now()
	assert.False(t, d.Join(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, lorawan.WaitingNone, d.Waiting())
}

func TestScheduleOrdersAcrossWrap(t *testing.T) {
	s := New(Config{Logger: logging.Discard()})
	nop := func(context.Context, uint32) {}

	s.schedule(0xfffffff0, nop)
	s.schedule(0x00000010, nop)
	id := s.schedule(0xffffff00, nop)
	s.schedule(0xfffffff8, nop)

	var got []uint32
	for _, j := range s.jobs {
		got = append(got, j.at)
	}
	assert.Equal(t, []uint32{0xffffff00, 0xfffffff0, 0xfffffff8, 0x00000010}, got)

	s.cancel(id)
	assert.Len(t, s.jobs, 3)
	assert.Equal(t, uint32(0xfffffff0), s.jobs[0].at)
}

func TestScripted(t *testing.T) {
	n := NewScripted(Echo(map[uint8]uint8{32: 22}), Downlink{Port: 20, Payload: []byte("node-7")})

	d, ok := n.Uplink(30, []byte("boot"), false)
	require.True(t, ok)
	assert.Equal(t, uint8(20), d.Port)

	_, ok = n.Uplink(30, []byte("boot"), false)
	assert.False(t, ok)

	d, ok = n.Uplink(32, []byte("9"), false)
	require.True(t, ok)
	assert.Equal(t, Downlink{Port: 22, Payload: []byte("9")}, d)

	n.Push(Downlink{Port: 21, Payload: []byte("3")})
	d, ok = n.Uplink(32, nil, false)
	require.True(t, ok)
	assert.Equal(t, uint8(21), d.Port)
}
