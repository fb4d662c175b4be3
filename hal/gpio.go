package hal

import (
	"fmt"
	"sync"
)

// GPIOMode selects whether a pin is an input or output.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIOPull selects the pull resistor configuration.
type GPIOPull uint8

const (
	GPIOPullNone GPIOPull = iota
	GPIOPullUp
	GPIOPullDown
)

// GPIOEdge selects which transitions raise an interrupt.
type GPIOEdge uint8

const (
	GPIOEdgeNone GPIOEdge = iota
	GPIOEdgeRising
	GPIOEdgeFalling
	GPIOEdgeBoth
)

// GPIOCaps declares what operations a pin supports.
type GPIOCaps uint8

const (
	GPIOCapInput GPIOCaps = 1 << iota
	GPIOCapOutput
	GPIOCapPullUp
	GPIOCapPullDown
	GPIOCapInterrupt
)

// GPIO provides access to general-purpose IO pins by board pin number.
type GPIO interface {
	PinCount() int
	Pin(id int) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Caps() GPIOCaps
	Configure(mode GPIOMode, pull GPIOPull) error
	Read() (level bool, err error)
	Write(level bool) error
	// SetInterrupt calls handler from interrupt context on matching edges.
	// GPIOEdgeNone or a nil handler disables it.
	SetInterrupt(edge GPIOEdge, handler func()) error
}

type nullGPIO struct{}

func (nullGPIO) PinCount() int      { return 0 }
func (nullGPIO) Pin(id int) GPIOPin { return nil }

type virtualGPIO struct {
	pins []*VirtualPin
}

func newVirtualGPIO(pins []*VirtualPin) GPIO {
	if len(pins) == 0 {
		return nullGPIO{}
	}
	return &virtualGPIO{pins: pins}
}

func (g *virtualGPIO) PinCount() int {
	if g == nil {
		return 0
	}
	return len(g.pins)
}

func (g *virtualGPIO) Pin(id int) GPIOPin {
	if g == nil || id < 0 || id >= len(g.pins) || g.pins[id] == nil {
		return nil
	}
	return g.pins[id]
}

// VirtualPin is an in-memory pin. Drive lets a simulated peripheral move an
// input and fire its interrupt.
type VirtualPin struct {
	mu      sync.Mutex
	name    string
	caps    GPIOCaps
	mode    GPIOMode
	pull    GPIOPull
	level   bool
	edge    GPIOEdge
	handler func()
}

func NewVirtualPin(name string, caps GPIOCaps) *VirtualPin {
	return &VirtualPin{
		name: name,
		caps: caps,
		mode: GPIOModeInput,
		pull: GPIOPullNone,
	}
}

func (p *VirtualPin) Name() string   { return p.name }
func (p *VirtualPin) Caps() GPIOCaps { return p.caps }

func (p *VirtualPin) Configure(mode GPIOMode, pull GPIOPull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch mode {
	case GPIOModeInput:
		if p.caps&GPIOCapInput == 0 {
			return fmt.Errorf("gpio: pin %s: input unsupported", p.name)
		}
	case GPIOModeOutput:
		if p.caps&GPIOCapOutput == 0 {
			return fmt.Errorf("gpio: pin %s: output unsupported", p.name)
		}
	default:
		return fmt.Errorf("gpio: pin %s: invalid mode", p.name)
	}

	switch pull {
	case GPIOPullNone:
	case GPIOPullUp:
		if p.caps&GPIOCapPullUp == 0 {
			return fmt.Errorf("gpio: pin %s: pull-up unsupported", p.name)
		}
		p.level = true
	case GPIOPullDown:
		if p.caps&GPIOCapPullDown == 0 {
			return fmt.Errorf("gpio: pin %s: pull-down unsupported", p.name)
		}
		p.level = false
	default:
		return fmt.Errorf("gpio: pin %s: invalid pull", p.name)
	}

	p.mode = mode
	p.pull = pull
	return nil
}

func (p *VirtualPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *VirtualPin) Write(level bool) error {
	p.mu.Lock()
	if p.mode != GPIOModeOutput {
		p.mu.Unlock()
		return fmt.Errorf("gpio: pin %s: not in output mode", p.name)
	}
	fire := p.setLevelLocked(level)
	p.mu.Unlock()

	if fire != nil {
		fire()
	}
	return nil
}

// Drive sets the level of an input pin from outside, as wired hardware
// would, and runs the interrupt handler on a matching edge.
func (p *VirtualPin) Drive(level bool) error {
	p.mu.Lock()
	if p.mode != GPIOModeInput {
		p.mu.Unlock()
		return fmt.Errorf("gpio: pin %s: not in input mode", p.name)
	}
	fire := p.setLevelLocked(level)
	p.mu.Unlock()

	if fire != nil {
		fire()
	}
	return nil
}

// Pulse drives the pin high and back low.
func (p *VirtualPin) Pulse() error {
	if err := p.Drive(true); err != nil {
		return err
	}
	return p.Drive(false)
}

func (p *VirtualPin) setLevelLocked(level bool) func() {
	prev := p.level
	p.level = level
	if prev == level || p.handler == nil {
		return nil
	}
	switch {
	case p.edge == GPIOEdgeBoth,
		p.edge == GPIOEdgeRising && level,
		p.edge == GPIOEdgeFalling && !level:
		return p.handler
	}
	return nil
}

func (p *VirtualPin) SetInterrupt(edge GPIOEdge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if edge != GPIOEdgeNone && handler != nil && p.caps&GPIOCapInterrupt == 0 {
		return fmt.Errorf("gpio: pin %s: interrupt unsupported", p.name)
	}
	if edge == GPIOEdgeNone {
		handler = nil
	}
	p.edge = edge
	p.handler = handler
	return nil
}
