//go:build tinygo && esp32

package hal

import (
	"device/esp"
	"fmt"
	"machine"
	"time"
)

const esp32PinCount = 40

type tinyGoHAL struct {
	logger *uartLogger
	gpio   *machineGPIO
	clock  monoClock
}

// New returns the ESP32 HAL.
//
// Console: UART0, 115200 8N1.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{BaudRate: 115200})

	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		gpio:   newMachineGPIO(esp32PinCount),
		clock:  monoClock{start: time.Now()},
	}
}

func (h *tinyGoHAL) Logger() Logger  { return h.logger }
func (h *tinyGoHAL) GPIO() GPIO      { return h.gpio }
func (h *tinyGoHAL) Clock() Clock    { return h.clock }
func (h *tinyGoHAL) NewAlarm() Alarm { return &timerAlarm{} }

func (h *tinyGoHAL) SPI(bus SPIBus, cfg SPIConfig) (SPI, error) {
	var spi *machine.SPI
	switch bus {
	case SPIBusHSPI:
		spi = machine.SPI2
	case SPIBusVSPI:
		spi = machine.SPI3
	default:
		return nil, fmt.Errorf("spi: bus %s: %w", bus, ErrNotImplemented)
	}
	err := spi.Configure(machine.SPIConfig{
		Frequency: cfg.Frequency,
		SCK:       machine.Pin(cfg.SCLK),
		SDO:       machine.Pin(cfg.MOSI),
		SDI:       machine.Pin(cfg.MISO),
	})
	if err != nil {
		return nil, fmt.Errorf("spi: bus %s: %w", bus, err)
	}
	return spi, nil
}

// HardwareAddr reads the factory MAC from eFuse block 0.
func (h *tinyGoHAL) HardwareAddr() [6]byte {
	lo := esp.EFUSE.BLK0_RDATA1.Get()
	hi := esp.EFUSE.BLK0_RDATA2.Get()
	return [6]byte{
		byte(hi >> 8), byte(hi),
		byte(lo >> 24), byte(lo >> 16), byte(lo >> 8), byte(lo),
	}
}
