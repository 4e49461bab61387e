package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "info")

	l.Info("Sending", "token", "mfa.secret-token", "sessionID", "0123456789abcdef", "device", "pc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[REDACTED]", line["token"])
	assert.Equal(t, "01234567...", line["sessionID"])
	assert.Equal(t, "pc", line["device"])
}

func TestLogger_LevelFilteringAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	l.Error(errors.New("boom"), "failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var errLine map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &errLine))
	assert.Equal(t, "ERROR", errLine["level"])
	assert.Equal(t, "boom", errLine["error"])
}
