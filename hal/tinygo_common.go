//go:build tinygo && baremetal

package hal

import (
	"fmt"
	"machine"
	"sync"
)

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// machineGPIO hands out pins by their chip GPIO number.
type machineGPIO struct {
	mu    sync.Mutex
	count int
	pins  map[int]*machinePin
}

func newMachineGPIO(count int) *machineGPIO {
	return &machineGPIO{count: count, pins: make(map[int]*machinePin)}
}

func (g *machineGPIO) PinCount() int { return g.count }

func (g *machineGPIO) Pin(id int) GPIOPin {
	if id < 0 || id >= g.count {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[id]
	if !ok {
		p = &machinePin{pin: machine.Pin(id), name: fmt.Sprintf("GPIO%d", id)}
		g.pins[id] = p
	}
	return p
}

type machinePin struct {
	pin  machine.Pin
	name string
}

func (p *machinePin) Name() string { return p.name }

func (p *machinePin) Caps() GPIOCaps {
	return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown | GPIOCapInterrupt
}

func (p *machinePin) Configure(mode GPIOMode, pull GPIOPull) error {
	var cfg machine.PinConfig
	switch {
	case mode == GPIOModeOutput:
		cfg.Mode = machine.PinOutput
	case pull == GPIOPullUp:
		cfg.Mode = machine.PinInputPullup
	case pull == GPIOPullDown:
		cfg.Mode = machine.PinInputPulldown
	default:
		cfg.Mode = machine.PinInput
	}
	p.pin.Configure(cfg)
	return nil
}

func (p *machinePin) Read() (bool, error) { return p.pin.Get(), nil }

func (p *machinePin) Write(level bool) error {
	p.pin.Set(level)
	return nil
}

func (p *machinePin) SetInterrupt(edge GPIOEdge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case GPIOEdgeRising:
		change = machine.PinRising
	case GPIOEdgeFalling:
		change = machine.PinFalling
	case GPIOEdgeBoth:
		change = machine.PinToggle
	}
	if edge == GPIOEdgeNone || handler == nil {
		return p.pin.SetInterrupt(0, nil)
	}
	if err := p.pin.SetInterrupt(change, func(machine.Pin) { handler() }); err != nil {
		return fmt.Errorf("gpio: pin %s: %w", p.name, err)
	}
	return nil
}
