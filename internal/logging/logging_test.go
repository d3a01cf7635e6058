package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink(Config{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("mode changed", zap.String("mode", "teleop"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "mode changed", entry["msg"])
	assert.Equal(t, "teleop", entry["mode"])
	assert.Contains(t, entry, "ts")
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink(Config{Level: "debug", Format: "console"}, zapcore.AddSync(&buf))
	require.NoError(t, err)
	logger.Debug("tick")
	assert.Contains(t, buf.String(), "tick")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "yaml"})
	assert.Error(t, err)
}
