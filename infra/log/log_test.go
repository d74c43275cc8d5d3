package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/config"
)

func TestLevelAndFields(t *testing.T) {
	var cfg config.Config
	cfg.Log.Level = "warn"
	var buf bytes.Buffer
	l := Component(NewWithWriter(cfg, &buf), "engine")

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Int("n", 3).Msg("shown")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "tickbook", line["app"])
	assert.Equal(t, "shown", line["message"])
	assert.EqualValues(t, 3, line["n"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var cfg config.Config
	cfg.Log.Level = "loud"
	var buf bytes.Buffer
	l := NewWithWriter(cfg, &buf)
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}
