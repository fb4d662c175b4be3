package lorawan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAppEUI = "70B3D57ED00306F7"
	testAppKey = "8214F6A2800C9FCD9B26BBE28D5CD057"
	testDevEUI = "004CFEED74AD2FA6"
)

func TestParseParameters(t *testing.T) {
	p, err := ParseParameters(testAppEUI, testAppKey, testDevEUI)
	require.NoError(t, err)

	assert.Equal(t, EUI{0xF7, 0x06, 0x03, 0xD0, 0x7E, 0xD5, 0xB3, 0x70}, p.AppEUI)
	assert.Equal(t, Key{
		0x82, 0x14, 0xF6, 0xA2, 0x80, 0x0C, 0x9F, 0xCD,
		0x9B, 0x26, 0xBB, 0xE2, 0x8D, 0x5C, 0xD0, 0x57,
	}, p.AppKey)
	assert.Equal(t, EUI{0xA6, 0x2F, 0xAD, 0x74, 0xED, 0xFE, 0x4C, 0x00}, p.DevEUI)

	assert.Equal(t, testAppEUI, p.AppEUI.String())
	assert.Equal(t, testDevEUI, p.DevEUI.String())
	assert.NotContains(t, p.String(), "8214")
}

func TestParseParametersInvalid(t *testing.T) {
	tests := []struct {
		name                   string
		appEUI, appKey, devEUI string
		field                  string
	}{
		{"short app EUI", "70B3D57ED00306F", testAppKey, testDevEUI, "app EUI"},
		{"non-hex key", testAppEUI, "8214F6A2800C9FCD9B26BBE28D5CD05Z", testDevEUI, "app key"},
		{"long device EUI", testAppEUI, testAppKey, testDevEUI + "00", "device EUI"},
		{"empty", "", "", "", "app EUI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameters(tt.appEUI, tt.appKey, tt.devEUI)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParameter)

			var perr *ParameterError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestDevEUIFromMAC(t *testing.T) {
	mac := [6]byte{0x24, 0x0A, 0xC4, 0x01, 0x02, 0x03}

	eui := DevEUIFromMAC(mac)

	assert.Equal(t, EUI{0x03, 0x02, 0x01, 0xFE, 0xFF, 0xC4, 0x0A, 0x24}, eui)
	assert.Equal(t, "240AC4FFFE010203", eui.String())
}

func TestParseParametersWithMAC(t *testing.T) {
	mac := [6]byte{1, 2, 3, 4, 5, 6}

	p, err := ParseParametersWithMAC(testAppEUI, testAppKey, mac)
	require.NoError(t, err)
	assert.Equal(t, DevEUIFromMAC(mac), p.DevEUI)

	_, err = ParseParametersWithMAC("xyz", testAppKey, mac)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
