package lorawan

import (
	"fmt"
	"strings"

	"radionode/hal"
	"radionode/nodeos/kernel"
)

// NotConnected marks a pin the board does not wire.
const NotConnected = 0xff

// Board is one of the supported radio boards.
type Board uint8

const (
	BoardUnknown Board = iota
	BoardTTGOTBeam
	// BoardHost is the simulated board of the host HAL.
	BoardHost
)

func (b Board) String() string {
	switch b {
	case BoardTTGOTBeam:
		return "ttgo-t-beam"
	case BoardHost:
		return "host"
	default:
		return fmt.Sprintf("board(%d)", uint8(b))
	}
}

// ParseBoard accepts the names printed by Board.String.
func ParseBoard(name string) (Board, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ttgo-t-beam", "ttgo_t_beam", "tbeam":
		return BoardTTGOTBeam, nil
	case "host", "sim":
		return BoardHost, nil
	}
	return BoardUnknown, fmt.Errorf("lorawan: unknown board %q", name)
}

// Pins is the radio wiring of a board.
type Pins struct {
	Name    string
	SPIBus  hal.SPIBus
	DMAChan uint8
	SPIFreq uint32
	SCLK    int
	MOSI    int
	MISO    int
	NSS     int
	RxTx    int
	Reset   int
	DIO0    int
	DIO1    int
	Button  int
}

// PinsFor returns the wiring of b. An unknown board is a programming error.
func PinsFor(b Board) Pins {
	switch b {
	case BoardTTGOTBeam:
		return Pins{
			Name:    "TTGO_T_BEAM",
			SPIBus:  hal.SPIBusHSPI,
			DMAChan: 1,
			SPIFreq: 8_000_000,
			SCLK:    5,
			MOSI:    27,
			MISO:    19,
			NSS:     18,
			RxTx:    NotConnected,
			Reset:   23,
			DIO0:    26,
			DIO1:    33,
			Button:  38,
		}
	case BoardHost:
		p := PinsFor(BoardTTGOTBeam)
		p.Name = "HOST"
		return p
	}
	kernel.Fatalf("lorawan: no pin map for %s", b)
	return Pins{}
}

func (p Pins) connected(pin int) bool { return pin != NotConnected }
