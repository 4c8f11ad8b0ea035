package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, flush := New(&buf, false, "")
	defer flush()

	log.Debug("hidden")
	log.Info("goal completed", "goalID", "g1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "goal completed", line["msg"])
	assert.Equal(t, "g1", line["goalID"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewDevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	log, flush := New(&buf, true, "")
	defer flush()

	log.Debug("sweep finished", "missed", 1)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "missed=1")
}
