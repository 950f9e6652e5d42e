package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestProductionLoggerIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWriter(&buf, "info", true), "script")
	l.Debug("hidden")
	l.Info("ran", "subcommand", "client list")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ran", line["msg"])
	assert.Equal(t, "script", line["component"])
	assert.Equal(t, "ovpnadmin", line["service"])
}

func TestDevelopmentLoggerIsText(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "debug", false).Debug("hello")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
}
