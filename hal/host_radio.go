//go:build !tinygo

package hal

import (
	"sync"
	"time"
)

const (
	radioRegFifo     = 0x00
	radioRegOpMode   = 0x01
	radioRegIrqFlags = 0x12
	radioRegVersion  = 0x42

	radioModeMask    = 0x07
	radioModeStandby = 0x01
	radioModeTx      = 0x03

	radioIrqTxDone = 0x08

	radioWriteBit = 0x80
	radioFifoSize = 256
)

// HostRadio emulates the register interface of an SX127x behind SPI.
//
// Setting the TX op mode sends the FIFO contents: after the configured
// airtime TxDone is flagged and DIO0 pulses.
type HostRadio struct {
	mu      sync.Mutex
	regs    [128]byte
	fifo    []byte
	frames  [][]byte
	dio0    *VirtualPin
	airtime time.Duration
}

func newHostRadio(dio0 *VirtualPin, airtime time.Duration) *HostRadio {
	r := &HostRadio{dio0: dio0, airtime: airtime}
	r.regs[radioRegVersion] = 0x12
	r.regs[radioRegOpMode] = radioModeStandby
	return r
}

// Tx runs one transaction: the first byte of w is the register address with
// the write bit, the rest is data. Reads fill r after its first byte.
func (r *HostRadio) Tx(w, rd []byte) error {
	if len(w) == 0 {
		return nil
	}
	addr := w[0] &^ radioWriteBit

	r.mu.Lock()
	var send []byte
	if w[0]&radioWriteBit != 0 {
		for _, b := range w[1:] {
			if r.writeLocked(addr, b) {
				send = r.fifo
				r.fifo = nil
				r.frames = append(r.frames, send)
			}
			addr = nextReg(addr)
		}
	} else {
		for i := 1; i < len(rd); i++ {
			rd[i] = r.readLocked(addr)
			addr = nextReg(addr)
		}
	}
	r.mu.Unlock()

	if send != nil {
		time.AfterFunc(r.airtime, r.txDone)
	}
	return nil
}

// Transfer clocks a single byte; the emulation answers zero.
func (r *HostRadio) Transfer(b byte) (byte, error) {
	return 0, nil
}

// Frames returns copies of every frame sent so far.
func (r *HostRadio) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	for i, f := range r.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

func (r *HostRadio) writeLocked(addr, b byte) (startTx bool) {
	switch addr {
	case radioRegFifo:
		if len(r.fifo) < radioFifoSize {
			r.fifo = append(r.fifo, b)
		}
	case radioRegIrqFlags:
		r.regs[addr] &^= b
	case radioRegOpMode:
		r.regs[addr] = b
		return b&radioModeMask == radioModeTx
	default:
		r.regs[addr] = b
	}
	return false
}

func (r *HostRadio) readLocked(addr byte) byte {
	if addr == radioRegFifo {
		if len(r.fifo) == 0 {
			return 0
		}
		b := r.fifo[0]
		r.fifo = r.fifo[1:]
		return b
	}
	return r.regs[addr]
}

func (r *HostRadio) txDone() {
	r.mu.Lock()
	r.regs[radioRegIrqFlags] |= radioIrqTxDone
	r.regs[radioRegOpMode] = r.regs[radioRegOpMode]&^radioModeMask | radioModeStandby
	r.mu.Unlock()

	if r.dio0 != nil {
		r.dio0.Pulse()
	}
}

func nextReg(addr byte) byte {
	if addr == radioRegFifo {
		return addr
	}
	return (addr + 1) &^ radioWriteBit
}
