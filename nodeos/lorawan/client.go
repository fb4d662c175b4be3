package lorawan

import (
	"context"
	"fmt"
)

// Response is the outcome of TransmitMessage.
type Response int8

const (
	ResponseTransmissionFailed Response = -1
	ResponseUnexpected         Response = -10
	ResponseSuccess            Response = 1
	ResponseReceived           Response = 2
)

func (r Response) String() string {
	switch r {
	case ResponseTransmissionFailed:
		return "transmission-failed"
	case ResponseUnexpected:
		return "unexpected"
	case ResponseSuccess:
		return "success"
	case ResponseReceived:
		return "received"
	default:
		return fmt.Sprintf("response(%d)", int8(r))
	}
}

// Listener receives downlinks. It runs on the goroutine blocked in
// TransmitMessage.
type Listener interface {
	OnMessageReceived(payload []byte, port uint8)
}

type ListenerFunc func(payload []byte, port uint8)

func (f ListenerFunc) OnMessageReceived(payload []byte, port uint8) { f(payload, port) }

// Client is the application's view of a joined radio.
type Client interface {
	InstallListener(l Listener)
	Reset()
	TransmitMessage(ctx context.Context, payload []byte, port uint8, confirm bool) Response
	SetRSSICal(v int8)
}

// Activator takes over the client once the network is joined.
type Activator interface {
	Activate(c Client)
}

type ActivatorFunc func(c Client)

func (f ActivatorFunc) Activate(c Client) { f(c) }

var _ Client = (*Driver)(nil)
