package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Config{Level: "info", Writer: &buf}), "fee")
	log.Debug().Msg("hidden")
	log.Info().Str("source", "provider").Msg("quote")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "fee", line["component"])
	assert.Equal(t, "provider", line["source"])
	assert.Equal(t, "quote", line["message"])
	assert.Contains(t, line, "time")
}
