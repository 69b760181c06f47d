package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevelAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "WARN", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("symbol", "SPX").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "SPX", entry["symbol"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "bogus"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = newLogger(Config{}, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Format: "console"}, &buf)
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
