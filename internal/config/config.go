// Package config provides configuration loading and validation for the agent.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Standard config file location.
const defaultConfigPath = "~/.config/pokeagent/config.yaml"

// envPrefix is the prefix for environment overrides, e.g. POKEAGENT_ORACLE_MODEL.
const envPrefix = "POKEAGENT"

// Agent modes.
const (
	ModeFourModule = "four-module"
	ModeSimple     = "simple"
)

// Oracle backends.
const (
	BackendClaudeCLI = "claude-cli"
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
)

// Config holds all agent configuration settings.
type Config struct {
	DataDir  string         `mapstructure:"data_dir"` // Directory holding the trace database
	LogLevel string         `mapstructure:"log_level"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Emulator EmulatorConfig `mapstructure:"emulator"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Prompts  PromptConfig   `mapstructure:"prompts"`

	// expandedPaths tracks whether ExpandPaths has been called.
	expandedPaths bool
}

// AgentConfig selects the agent mode and bounds the session loop.
type AgentConfig struct {
	Mode      string        `mapstructure:"mode"`       // four-module | simple
	MaxTicks  int           `mapstructure:"max_ticks"`  // 0 means run until the source ends
	TickDelay time.Duration `mapstructure:"tick_delay"` // Pause between ticks
}

// OracleConfig holds model-inference settings.
type OracleConfig struct {
	Backend           string        `mapstructure:"backend"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"` // 0 disables rate limiting
	Timeout           time.Duration `mapstructure:"timeout"`             // 0 means no per-call timeout
}

// EmulatorConfig selects where state snapshots come from.
type EmulatorConfig struct {
	URL        string        `mapstructure:"url"`         // Emulator server base URL
	ReplayPath string        `mapstructure:"replay_path"` // JSONL snapshots; takes precedence over URL
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Empty disables the endpoint
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"` // OTLP/HTTP endpoint; empty disables export
	Insecure bool   `mapstructure:"insecure"`
}

// PromptConfig holds paths to custom prompts.
type PromptConfig struct {
	System string `mapstructure:"system"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "~/.local/share/pokeagent",
		LogLevel: "info",
		Agent: AgentConfig{
			Mode: ModeFourModule,
		},
		Oracle: OracleConfig{
			Backend:   BackendGemini,
			Model:     "gemini-2.5-flash",
			MaxTokens: 2048,
			Timeout:   2 * time.Minute,
		},
		Emulator: EmulatorConfig{
			URL:     "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads config from the standard location (~/.config/pokeagent/config.yaml),
// falling back to defaults if the file doesn't exist.
func Load() (*Config, error) {
	configPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path. JSON and YAML are both accepted.
// If the file doesn't exist, defaults (plus environment overrides) are returned.
// If the file exists but is invalid, returns an error.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newViper returns a viper instance seeded with defaults so that every key is
// known to AutomaticEnv and missing file fields keep their default values.
func newViper() *viper.Viper {
	v := viper.New()
	def := DefaultConfig()

	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("agent.mode", def.Agent.Mode)
	v.SetDefault("agent.max_ticks", def.Agent.MaxTicks)
	v.SetDefault("agent.tick_delay", def.Agent.TickDelay)
	v.SetDefault("oracle.backend", def.Oracle.Backend)
	v.SetDefault("oracle.model", def.Oracle.Model)
	v.SetDefault("oracle.api_key", def.Oracle.APIKey)
	v.SetDefault("oracle.base_url", def.Oracle.BaseURL)
	v.SetDefault("oracle.max_tokens", def.Oracle.MaxTokens)
	v.SetDefault("oracle.requests_per_minute", def.Oracle.RequestsPerMinute)
	v.SetDefault("oracle.timeout", def.Oracle.Timeout)
	v.SetDefault("emulator.url", def.Emulator.URL)
	v.SetDefault("emulator.replay_path", def.Emulator.ReplayPath)
	v.SetDefault("emulator.timeout", def.Emulator.Timeout)
	v.SetDefault("metrics.addr", def.Metrics.Addr)
	v.SetDefault("tracing.endpoint", def.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", def.Tracing.Insecure)
	v.SetDefault("prompts.system", def.Prompts.System)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	var errs []error

	switch c.Agent.Mode {
	case ModeFourModule, ModeSimple:
	default:
		errs = append(errs, fmt.Errorf("agent.mode must be %q or %q, got %q", ModeFourModule, ModeSimple, c.Agent.Mode))
	}

	if c.Agent.MaxTicks < 0 {
		errs = append(errs, errors.New("agent.max_ticks must be >= 0"))
	}

	if c.Agent.TickDelay < 0 {
		errs = append(errs, errors.New("agent.tick_delay must be >= 0"))
	}

	switch c.Oracle.Backend {
	case BackendClaudeCLI, BackendAnthropic, BackendOpenAI, BackendGemini:
	default:
		errs = append(errs, fmt.Errorf("oracle.backend %q is not supported", c.Oracle.Backend))
	}

	if c.Oracle.Model == "" {
		errs = append(errs, errors.New("oracle.model must be non-empty"))
	}

	if c.Oracle.MaxTokens < 1 {
		errs = append(errs, errors.New("oracle.max_tokens must be >= 1"))
	}

	if c.Oracle.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("oracle.requests_per_minute must be >= 0"))
	}

	if c.Oracle.Timeout < 0 {
		errs = append(errs, errors.New("oracle.timeout must be >= 0"))
	}

	if c.Emulator.URL == "" && c.Emulator.ReplayPath == "" {
		errs = append(errs, errors.New("one of emulator.url or emulator.replay_path must be set"))
	}

	if c.Emulator.ReplayPath != "" {
		if _, err := os.Stat(c.Emulator.ReplayPath); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("emulator.replay_path file does not exist: %s", c.Emulator.ReplayPath))
		}
	}

	if c.Prompts.System != "" {
		if _, err := os.Stat(c.Prompts.System); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("prompts.system file does not exist: %s", c.Prompts.System))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ExpandPaths expands ~ to home directory in all path fields.
func (c *Config) ExpandPaths() error {
	if c.expandedPaths {
		return nil
	}

	var err error

	c.DataDir, err = expandPath(c.DataDir)
	if err != nil {
		return fmt.Errorf("failed to expand data_dir: %w", err)
	}

	c.Emulator.ReplayPath, err = expandPath(c.Emulator.ReplayPath)
	if err != nil {
		return fmt.Errorf("failed to expand emulator.replay_path: %w", err)
	}

	c.Prompts.System, err = expandPath(c.Prompts.System)
	if err != nil {
		return fmt.Errorf("failed to expand prompts.system: %w", err)
	}

	c.expandedPaths = true
	return nil
}

// GetDatabasePath returns the path of the trace database inside DataDir.
func (c *Config) GetDatabasePath() string {
	return filepath.Join(c.DataDir, "pokeagent.db")
}

// GetSystemPrompt returns the custom system prompt if one is configured.
// An empty string signals that the caller should use the embedded default.
func (c *Config) GetSystemPrompt() (string, error) {
	if c.Prompts.System == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Prompts.System)
	if err != nil {
		return "", fmt.Errorf("failed to read custom system prompt: %w", err)
	}
	return string(data), nil
}

// ResolveAPIKey returns the configured API key, falling back to the
// provider's conventional environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.Oracle.APIKey != "" {
		return c.Oracle.APIKey
	}
	switch c.Oracle.Backend {
	case BackendAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case BackendOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case BackendGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	// Expand ~
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
