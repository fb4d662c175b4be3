package lorawan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidParameter reports malformed credential text.
var ErrInvalidParameter = errors.New("lorawan: invalid parameter")

// ParameterError names the credential that failed to decode.
type ParameterError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("lorawan: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// EUI is a 64-bit identifier stored least significant byte first, the order
// the MAC stack expects.
type EUI [8]byte

// String prints the EUI in the usual most-significant-first notation.
func (e EUI) String() string {
	b := e
	slices.Reverse(b[:])
	return strings.ToUpper(hex.EncodeToString(b[:]))
}

// Key is the 128-bit application key, stored in input order.
type Key [16]byte

// Parameters are the OTAA credentials handed to the MAC stack.
type Parameters struct {
	AppEUI EUI
	AppKey Key
	DevEUI EUI
}

func (p Parameters) String() string {
	return fmt.Sprintf("appEUI=%s devEUI=%s appKey=<redacted>", p.AppEUI, p.DevEUI)
}

// ParseParameters decodes hex credentials: 16 digits for each EUI and 32 for
// the key.
func ParseParameters(appEUI, appKey, devEUI string) (Parameters, error) {
	var p Parameters
	var err error
	if p.AppEUI, err = parseEUI("app EUI", appEUI); err != nil {
		return Parameters{}, err
	}
	if p.AppKey, err = parseKey(appKey); err != nil {
		return Parameters{}, err
	}
	if p.DevEUI, err = parseEUI("device EUI", devEUI); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// ParseParametersWithMAC is ParseParameters with the device EUI derived from
// the board's hardware address.
func ParseParametersWithMAC(appEUI, appKey string, mac [6]byte) (Parameters, error) {
	var p Parameters
	var err error
	if p.AppEUI, err = parseEUI("app EUI", appEUI); err != nil {
		return Parameters{}, err
	}
	if p.AppKey, err = parseKey(appKey); err != nil {
		return Parameters{}, err
	}
	p.DevEUI = DevEUIFromMAC(mac)
	return p, nil
}

// DevEUIFromMAC expands a MAC-48 into an EUI-64 by inserting FF FE after the
// vendor part.
func DevEUIFromMAC(mac [6]byte) EUI {
	return EUI{mac[5], mac[4], mac[3], 0xfe, 0xff, mac[2], mac[1], mac[0]}
}

func parseEUI(field, s string) (EUI, error) {
	var eui EUI
	if err := decodeHex(field, s, eui[:]); err != nil {
		return EUI{}, err
	}
	slices.Reverse(eui[:])
	return eui, nil
}

func parseKey(s string) (Key, error) {
	var key Key
	if err := decodeHex("app key", s, key[:]); err != nil {
		return Key{}, err
	}
	return key, nil
}

func decodeHex(field, s string, dst []byte) error {
	if len(s) != 2*len(dst) {
		return &ParameterError{
			Field:  field,
			Value:  s,
			Reason: fmt.Sprintf("want %d hex digits, got %d", 2*len(dst), len(s)),
		}
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return &ParameterError{Field: field, Value: s, Reason: err.Error()}
	}
	return nil
}
