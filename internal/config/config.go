// Package config loads the analyzer settings from an optional YAML file and
// the environment. The result is read once at startup and never mutated.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath = "REQ_ANALYZER_CONFIG"
	EnvProvider   = "REQ_ANALYZER_PROVIDER"
	EnvModel      = "REQ_ANALYZER_MODEL"
	EnvLogLevel   = "LOG_LEVEL"
	EnvPort       = "PORT"
)

// Providers lists the supported generation services.
var Providers = []string{"google", "openai", "anthropic"}

var defaultModels = map[string]string{
	"google":    "gemini-2.5-flash",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-haiku-4-5",
}

// AgentConfig enables one dimension and optionally overrides its prompt.
type AgentConfig struct {
	Dimension string          `yaml:"dimension"`
	Enabled   bool            `yaml:"enabled"`
	Template  *agent.Template `yaml:"template,omitempty"`
}

// RetryConfig bounds retries of transport failures per agent call.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// RateLimitConfig throttles calls to the generation service. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete analyzer configuration.
type Config struct {
	Provider             string          `yaml:"provider"`
	Model                string          `yaml:"model"`
	MaxTokens            int64           `yaml:"max_tokens"`
	Temperature          float64         `yaml:"temperature"`
	Timeout              time.Duration   `yaml:"timeout"`
	MaxRequirementLength int             `yaml:"max_requirement_length"`
	Concurrency          int             `yaml:"concurrency"`
	Retry                RetryConfig     `yaml:"retry"`
	RateLimit            RateLimitConfig `yaml:"rate_limit"`
	Refine               bool            `yaml:"refine"`
	Agents               []AgentConfig   `yaml:"agents"`
	Server               ServerConfig    `yaml:"server"`
	Log                  LogConfig       `yaml:"log"`
}

// Default returns the built-in configuration: Gemini, the three core
// dimensions enabled and verifiability disabled.
func Default() Config {
	return Config{
		Provider:             "google",
		Model:                defaultModels["google"],
		MaxTokens:            1024,
		Temperature:          0.2,
		Timeout:              60 * time.Second,
		MaxRequirementLength: 2000,
		Retry:                RetryConfig{Attempts: 2, Backoff: 500 * time.Millisecond},
		Agents: []AgentConfig{
			{Dimension: agent.Clarity, Enabled: true},
			{Dimension: agent.Completeness, Enabled: true},
			{Dimension: agent.Consistency, Enabled: true},
			{Dimension: agent.Verifiability, Enabled: false},
		},
		Server: ServerConfig{Addr: ":8000"},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (or $REQ_ANALYZER_CONFIG when path is empty) over the
// defaults, applies environment overrides and validates the result.
// A missing file named only by the environment is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	// the model follows the provider unless set explicitly
	cfg.Model = ""

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvProvider); v != "" {
		if v != c.Provider && os.Getenv(EnvModel) == "" {
			c.Model = ""
		}
		c.Provider = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	for i := range c.Agents {
		c.Agents[i].Dimension = strings.ToLower(strings.TrimSpace(c.Agents[i].Dimension))
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(Providers, c.Provider) {
		return fmt.Errorf("provider must be one of %s, got %q", strings.Join(Providers, ", "), c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRequirementLength <= 0 {
		return fmt.Errorf("max_requirement_length must be positive")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2]")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if c.Retry.Attempts < 0 || c.Retry.Backoff < 0 {
		return fmt.Errorf("retry settings must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit settings must not be negative")
	}

	known := agent.KnownDimensions()
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.Dimension == "" {
			return fmt.Errorf("agents[%d]: dimension is required", i)
		}
		if seen[a.Dimension] {
			return fmt.Errorf("agents[%d]: duplicate dimension %q", i, a.Dimension)
		}
		seen[a.Dimension] = true
		if !slices.Contains(known, a.Dimension) && (a.Template == nil || strings.TrimSpace(a.Template.Instructions) == "") {
			return fmt.Errorf("agents[%d]: unknown dimension %q needs a template", i, a.Dimension)
		}
	}
	if len(c.EnabledAgents()) == 0 {
		return fmt.Errorf("at least one agent must be enabled")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text")
	}
	return nil
}

// EnabledAgents returns the enabled agents in configuration order.
func (c Config) EnabledAgents() []AgentConfig {
	var out []AgentConfig
	for _, a := range c.Agents {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) (string, bool) {
	m, ok := defaultModels[provider]
	return m, ok
}
