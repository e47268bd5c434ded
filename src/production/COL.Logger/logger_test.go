package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", false)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "loud", false)

	log.Debug("debug line")
	log.Info("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestWithComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false).WithComponent("alert-consumer")

	log.ErrorWithError(errors.New("boom"), "failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alert-consumer", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "failed", entry["message"])
	assert.Equal(t, "error", entry["level"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false).WithFields(map[string]interface{}{"a": "x", "b": 2})

	log.Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "x", entry["a"])
	assert.EqualValues(t, 2, entry["b"])
}
