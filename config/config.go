// Package config loads agentstream settings from an optional YAML file and
// the environment, then validates them.
//
// Precedence: defaults, then the YAML file, then environment variables.
// API keys are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Search  SearchConfig  `yaml:"search"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr                string        `yaml:"addr" validate:"required"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	EmitTerminalRecords bool          `yaml:"emit_terminal_records"`
	EventBufferSize     int           `yaml:"event_buffer_size" validate:"gte=0"`
}

// ModelConfig selects and tunes the reasoning capability.
type ModelConfig struct {
	Provider     string  `yaml:"provider" validate:"oneof=openai anthropic mock"`
	Name         string  `yaml:"name"`
	Temperature  float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int64   `yaml:"max_tokens" validate:"gt=0"`
	BaseURL      string  `yaml:"base_url" validate:"omitempty,url"`
	Instructions string  `yaml:"instructions"`

	OpenAIAPIKey    string `yaml:"-" validate:"required_if=Provider openai"`
	AnthropicAPIKey string `yaml:"-" validate:"required_if=Provider anthropic"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	Enabled    bool    `yaml:"enabled"`
	MaxResults int     `yaml:"max_results" validate:"gte=1,lte=20"`
	Depth      string  `yaml:"depth" validate:"oneof=basic advanced"`
	RateLimit  float64 `yaml:"rate_limit" validate:"gte=0"`

	APIKey string `yaml:"-" validate:"required_if=Enabled true"`
}

// EngineConfig bounds a single run.
type EngineConfig struct {
	MaxSteps         int `yaml:"max_steps" validate:"gte=-1"`
	MaxParallelTools int `yaml:"max_parallel_tools" validate:"gte=0"`
}

// LoggingConfig selects the logging backend.
type LoggingConfig struct {
	Backend string `yaml:"backend" validate:"oneof=slog zap none"`
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"oneof=json text"`
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter" validate:"oneof=stdout none"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   4096,
			Instructions: "You are a helpful assistant. Today is {{.date}}. " +
				"Use the search tool for questions about current events.",
		},
		Search: SearchConfig{
			MaxResults: 4,
			Depth:      "basic",
			RateLimit:  5,
		},
		Engine: EngineConfig{
			MaxSteps: 25,
		},
		Logging: LoggingConfig{
			Backend: "slog",
			Level:   "info",
			Format:  "json",
		},
		Tracing: TracingConfig{
			Exporter: "stdout",
		},
	}
}

// Load reads path (optional) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = defaultModelNames[cfg.Model.Provider]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var defaultModelNames = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-sonnet-latest",
	"mock":      "mock",
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("OPENAI_API_KEY"); ok {
		cfg.Model.OpenAIAPIKey = v
	}
	if v, ok := lookup("ANTHROPIC_API_KEY"); ok {
		cfg.Model.AnthropicAPIKey = v
	}
	if v, ok := lookup("TAVILY_API_KEY"); ok && v != "" {
		cfg.Search.APIKey = v
		cfg.Search.Enabled = true
	}
	if v, ok := lookup("AGENTSTREAM_ADDR"); ok && v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := lookup("AGENTSTREAM_MODEL_PROVIDER"); ok && v != "" {
		cfg.Model.Provider = v
	}
	if v, ok := lookup("AGENTSTREAM_LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := lookup("AGENTSTREAM_TRACING"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AGENTSTREAM_TRACING: %w", err)
		}
		cfg.Tracing.Enabled = enabled
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and returns a readable error listing
// every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %w", errors.Join(msgs...))
}
