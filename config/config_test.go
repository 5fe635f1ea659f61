package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestLoad_DefaultsWithEnv(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"TAVILY_API_KEY": "tvly-test",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, 4, cfg.Search.MaxResults)
	assert.True(t, cfg.Search.Enabled)
	assert.Equal(t, 25, cfg.Engine.MaxSteps)
	assert.False(t, cfg.Server.EmitTerminalRecords)
}

func TestLoad_MissingProviderKey(t *testing.T) {
	_, err := LoadWithEnv("", env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAIAPIKey")
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  shutdown_timeout: 3s
  emit_terminal_records: true
model:
  provider: mock
engine:
  max_steps: 5
  max_parallel_tools: 2
logging:
  backend: zap
  level: debug
`), 0o600))

	cfg, err := LoadWithEnv(path, env(map[string]string{"AGENTSTREAM_ADDR": ":7070"}))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Server.EmitTerminalRecords)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 5, cfg.Engine.MaxSteps)
	assert.Equal(t, "zap", cfg.Logging.Backend)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: llama
search:
  max_results: 0
`), 0o600))

	_, err := LoadWithEnv(path, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
	assert.Contains(t, err.Error(), "MaxResults")
}

func TestLoad_BadInputs(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)

	_, err = LoadWithEnv("", env(map[string]string{"OPENAI_API_KEY": "k", "AGENTSTREAM_TRACING": "maybe"}))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err = LoadWithEnv(path, env(nil))
	assert.Error(t, err)
}

func TestLoad_SearchRequiresKeyWhenEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: mock\nsearch:\n  enabled: true\n"), 0o600))

	_, err := LoadWithEnv(path, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIKey")
}

func TestLoad_ProviderDefaultModelName(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{
		"AGENTSTREAM_MODEL_PROVIDER": "anthropic",
		"ANTHROPIC_API_KEY":          "sk-ant",
	}))
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet-latest", cfg.Model.Name)
}
