// Package config loads TaskPilot configuration from YAML with environment
// overrides. Precedence: defaults, then file, then environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full TaskPilot configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Memory   MemoryConfig   `yaml:"memory"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Provider ProviderConfig `yaml:"provider"`
	Log      LogConfig      `yaml:"log"`
}

// AgentConfig tunes the orchestrator and executor.
type AgentConfig struct {
	// MaxRetries is the per-task attempt budget, first try included.
	MaxRetries int `yaml:"max_retries"`
	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// MaxReasoningCalls caps provider calls per goal; 0 means unlimited.
	MaxReasoningCalls int `yaml:"max_reasoning_calls"`
	// BreakerThreshold is the validation-failure count that opens the circuit.
	BreakerThreshold int `yaml:"breaker_threshold"`
}

// MemoryConfig tunes the long-term memory store.
type MemoryConfig struct {
	Dir          string `yaml:"dir"`
	MaxLongTerm  int    `yaml:"max_long_term"`
	MaxShortTerm int    `yaml:"max_short_term"`
}

// LedgerConfig selects the ledger backend. An empty Path selects the
// in-memory store; ":memory:" selects an ephemeral SQLite database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig selects and tunes the reasoning provider. API keys are never
// read from the file; they come from the environment only.
type ProviderConfig struct {
	// Name is "anthropic", "openai" or "mock".
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// APIKey is populated from ANTHROPIC_API_KEY / OPENAI_API_KEY.
	APIKey string `yaml:"-"`
}

// LogConfig tunes structured logging.
type LogConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json or text
	AddSource bool   `yaml:"add_source"`
}

// Default returns the baseline configuration used when no file is given.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxRetries:       3,
			ToolTimeout:      60 * time.Second,
			BreakerThreshold: 5,
		},
		Memory: MemoryConfig{
			Dir:          "data/agent_memory",
			MaxLongTerm:  10000,
			MaxShortTerm: 100,
		},
		Provider: ProviderConfig{
			Name:        "anthropic",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file and returns defaults plus
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv pulls secrets and common overrides from the environment.
func (c *Config) applyEnv() {
	switch c.Provider.Name {
	case "openai":
		c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		c.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if v := os.Getenv("TASKPILOT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TASKPILOT_MEMORY_DIR"); v != "" {
		c.Memory.Dir = v
	}
	if v := os.Getenv("TASKPILOT_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("TASKPILOT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Agent.MaxRetries = n
		}
	}
	if v := os.Getenv("TASKPILOT_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Agent.ToolTimeout = d
		}
	}
}

func (c *Config) validate() error {
	if c.Agent.MaxRetries <= 0 {
		return fmt.Errorf("agent.max_retries must be positive, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.ToolTimeout <= 0 {
		return fmt.Errorf("agent.tool_timeout must be positive, got %s", c.Agent.ToolTimeout)
	}
	if c.Agent.BreakerThreshold < 0 {
		return fmt.Errorf("agent.breaker_threshold must not be negative, got %d", c.Agent.BreakerThreshold)
	}
	switch c.Provider.Name {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
