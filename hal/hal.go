package hal

import (
	"bytes"
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Logger writes newline-delimited log lines to the board console.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// SPI is a full-duplex SPI controller; Tx writes w while filling r.
type SPI = drivers.SPI

// SPIBus selects one of the SPI controllers of a board.
type SPIBus uint8

const (
	SPIBusHSPI SPIBus = iota + 1
	SPIBusVSPI
)

func (b SPIBus) String() string {
	switch b {
	case SPIBusHSPI:
		return "HSPI"
	case SPIBusVSPI:
		return "VSPI"
	default:
		return "SPI?"
	}
}

// SPIConfig assigns the pins and clock of an SPI controller.
type SPIConfig struct {
	SCLK      int
	MOSI      int
	MISO      int
	Frequency uint32
}

// Clock is a monotonic microsecond counter that starts near zero at boot.
type Clock interface {
	Micros() int64
}

// Alarm is a one-shot timer. Set replaces any pending shot.
type Alarm interface {
	Set(d time.Duration, fn func())
	Cancel()
}

// HAL provides the only contact point between the node and its hardware.
type HAL interface {
	Logger() Logger
	GPIO() GPIO
	SPI(bus SPIBus, cfg SPIConfig) (SPI, error)
	Clock() Clock
	NewAlarm() Alarm
	// HardwareAddr is the factory MAC of the board.
	HardwareAddr() [6]byte
}

// LoggerWriter adapts a Logger to io.Writer, one line per Write.
func LoggerWriter(l Logger) *LineWriter {
	return &LineWriter{l: l}
}

type LineWriter struct {
	l Logger
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.l.WriteLineBytes(bytes.TrimRight(p, "\r\n"))
	return len(p), nil
}
