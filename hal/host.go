//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

const hostPinCount = 40

// HostConfig wires the simulated board.
type HostConfig struct {
	// DIO0 is the pin the emulated radio raises TxDone on.
	DIO0 int
	// Airtime is how long an emulated transmission takes.
	Airtime time.Duration
	// HardwareAddr overrides the MAC taken from the host interfaces.
	HardwareAddr [6]byte
	Output       io.Writer
}

// DefaultHostConfig matches the TTGO T-Beam radio wiring.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		DIO0:    26,
		Airtime: 50 * time.Millisecond,
		Output:  os.Stdout,
	}
}

// Host is a HAL backed by virtual pins, an emulated SX127x radio on HSPI
// and the host's monotonic clock.
type Host struct {
	logger *hostLogger
	pins   []*VirtualPin
	gpio   GPIO
	radio  *HostRadio
	clock  monoClock
	mac    [6]byte
}

// New returns a host HAL with the default wiring.
func New() HAL {
	return NewHost(DefaultHostConfig())
}

func NewHost(cfg HostConfig) *Host {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	pins := make([]*VirtualPin, hostPinCount)
	for i := range pins {
		pins[i] = NewVirtualPin(fmt.Sprintf("GPIO%d", i),
			GPIOCapInput|GPIOCapOutput|GPIOCapPullUp|GPIOCapPullDown|GPIOCapInterrupt)
	}
	h := &Host{
		logger: &hostLogger{w: cfg.Output},
		pins:   pins,
		gpio:   newVirtualGPIO(pins),
		clock:  monoClock{start: time.Now()},
		mac:    cfg.HardwareAddr,
	}
	h.radio = newHostRadio(h.pin(cfg.DIO0), cfg.Airtime)
	if h.mac == ([6]byte{}) {
		h.mac = hostHardwareAddr()
	}
	return h
}

func (h *Host) Logger() Logger { return h.logger }
func (h *Host) GPIO() GPIO     { return h.gpio }
func (h *Host) Clock() Clock   { return h.clock }

func (h *Host) NewAlarm() Alarm { return &timerAlarm{} }

func (h *Host) HardwareAddr() [6]byte { return h.mac }

// SPI returns the emulated radio; pin assignments are ignored.
func (h *Host) SPI(bus SPIBus, cfg SPIConfig) (SPI, error) {
	if bus != SPIBusHSPI {
		return nil, fmt.Errorf("spi: bus %s: %w", bus, ErrNotImplemented)
	}
	return h.radio, nil
}

// Radio returns the emulated radio on HSPI.
func (h *Host) Radio() *HostRadio { return h.radio }

// Pin returns a virtual pin for driving it from tests or simulations.
func (h *Host) Pin(id int) *VirtualPin { return h.pin(id) }

func (h *Host) pin(id int) *VirtualPin {
	if id < 0 || id >= len(h.pins) {
		return nil
	}
	return h.pins[id]
}

func hostHardwareAddr() [6]byte {
	var mac [6]byte
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, ifc := range ifaces {
			if ifc.Flags&net.FlagLoopback == 0 && len(ifc.HardwareAddr) == 6 {
				copy(mac[:], ifc.HardwareAddr)
				return mac
			}
		}
	}
	// Locally administered fallback.
	return [6]byte{0x02, 0x00, 0x00, 0x4c, 0x4f, 0x52}
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
