package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_SlogJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Backend: "slog", Level: "info", Output: &buf})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("runner.session.created", "session_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "runner.session.created", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "syslog"})
	assert.Error(t, err)
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Warn("engine.tool.failed", "tool", "tavily_search")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "engine.tool.failed", entry.Message)
	assert.Equal(t, "tavily_search", entry.ContextMap()["tool"])
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := NewZapAdapter(zap.New(core))

	l := With(With(base, "session_id", "s1"), "run_id", "r1")
	l.Info("x", "k", "v")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "s1", fields["session_id"])
	assert.Equal(t, "r1", fields["run_id"])
	assert.Equal(t, "v", fields["k"])

	assert.Equal(t, NoOpLogger{}, With(nil, "a", "b"))
}
