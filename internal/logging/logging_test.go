package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxBackups = -1
	assert.Error(t, cfg.Validate())
}

func TestNewConsoleText(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(DefaultConfig(), &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Debug("hidden")
	log.Info("shown", Port(31))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "port=31")
}

func TestNewJSONWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.File = path

	var buf bytes.Buffer
	log, closer, err := New(cfg, &buf)
	require.NoError(t, err)

	log.Warn("uplink", Error(errors.New("busy")))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"busy"`)
	assert.Equal(t, buf.String(), string(data))
}

func TestEmptyAttrs(t *testing.T) {
	assert.True(t, Error(nil).Equal(slog.Attr{}))
	assert.True(t, Op(uuid.Nil).Equal(slog.Attr{}))
	assert.True(t, Task("").Equal(slog.Attr{}))

	id := uuid.New()
	assert.Equal(t, id.String(), Op(id).Value.String())
}
