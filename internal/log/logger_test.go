package log

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
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter("info", &buf), "hub")

	logger.Debug().Msg("hidden")
	logger.Info().Str("board", "b1").Msg("room created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hub", line["component"])
	assert.Equal(t, "b1", line["board"])
	assert.Equal(t, "room created", line["message"])
}
