package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/consolenano/pkg/config"
)

func TestLoggerEventsCarryType(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	l.LogPlan("t-1", "create bucket", 4, "clean")
	l.LogAdaptation("t-1", 2, true, "service changed")
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "plan", first["event"])
	assert.Equal(t, "t-1", first["task_id"])
	assert.EqualValues(t, 4, first["steps"])
	assert.Equal(t, "consolenano", first["logger"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "adaptation", second["event"])
	assert.Equal(t, true, second["adapted"])
}

func TestLogLLMHidesPromptBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	l.LogLLM("plan", "USER REQUEST: secret page", "{}", nil)
	l.LogLLM("plan", "p", "", errors.New("connection refused"))

	out := buf.String()
	assert.NotContains(t, out, "secret page")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, `"prompt_chars":25`)
}

func TestLoggerWritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "consolenano.log")
	var console bytes.Buffer
	l := NewLogger(config.LoggingConfig{Level: "debug", Format: "console", File: file, MaxSize: 1}, &console)

	l.LogHighlight("3", []string{"#a", "#b"}, true)
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"selectors":"#a OR #b"`)
	assert.Contains(t, console.String(), "highlight requested")
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(config.LoggingConfig{Level: "loud", Format: "json"}, &buf)
	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestStatusLine(t *testing.T) {
	SetStatus(PhaseGuiding, "Create an S3 bucket for static website hosting")
	Heartbeat()
	t.Cleanup(func() { SetStatus(PhaseIdle, "") })

	line := StatusLine(time.Now(), 1)
	assert.Contains(t, line, "HEALTHY")
	assert.Contains(t, line, "GUIDING")
	assert.Contains(t, line, "Create an S3 bucket fo...")
	assert.Contains(t, line, radarFrames[1])

	SetStatus(PhaseIdle, "")
	line = StatusLine(time.Now().Add(2*time.Minute), 0)
	assert.Contains(t, line, "OFFLINE")
	assert.Contains(t, line, "Waiting...")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "AWS CONSOLE CO-PILOT")
}
