package simstack

import (
	"maps"
	"sync"
)

// Downlink is a frame the simulated network sends in the receive window.
type Downlink struct {
	Port    uint8
	Payload []byte
}

// Network decides the downlink, if any, that answers an uplink.
type Network interface {
	Uplink(port uint8, payload []byte, confirmed bool) (Downlink, bool)
}

type NetworkFunc func(port uint8, payload []byte, confirmed bool) (Downlink, bool)

func (f NetworkFunc) Uplink(port uint8, payload []byte, confirmed bool) (Downlink, bool) {
	return f(port, payload, confirmed)
}

// Scripted answers uplinks with queued downlinks in order and defers to
// Fallback once the queue is empty.
type Scripted struct {
	mu       sync.Mutex
	queue    []Downlink
	Fallback Network
}

func NewScripted(fallback Network, downlinks ...Downlink) *Scripted {
	return &Scripted{queue: downlinks, Fallback: fallback}
}

// Push queues d behind the pending downlinks.
func (s *Scripted) Push(d Downlink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, d)
}

func (s *Scripted) Uplink(port uint8, payload []byte, confirmed bool) (Downlink, bool) {
	s.mu.Lock()
	if len(s.queue) > 0 {
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return d, true
	}
	s.mu.Unlock()

	if s.Fallback == nil {
		return Downlink{}, false
	}
	return s.Fallback.Uplink(port, payload, confirmed)
}

// Echo sends the payload of an uplink on a routed port back on the mapped
// downlink port.
func Echo(routes map[uint8]uint8) Network {
	routes = maps.Clone(routes)
	return NetworkFunc(func(port uint8, payload []byte, _ bool) (Downlink, bool) {
		down, ok := routes[port]
		if !ok {
			return Downlink{}, false
		}
		return Downlink{Port: down, Payload: append([]byte(nil), payload...)}, true
	})
}
