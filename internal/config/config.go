// Package config handles menuagent configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Generator providers understood by [GeneratorConfig.Provider].
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Defaults applied before the YAML document is decoded.
const (
	DefaultListenPort      = 3000
	DefaultRelayPort       = 4000
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 2048
	DefaultTemperature     = 0.7
	DefaultTimeoutSec      = 60
	DefaultMaxIterations   = 1
	DefaultFailureMessage  = "Could not generate menu"
	DefaultSystemPrompt    = "You are a helpful assistant, you use the tools when needed"
	DefaultUsagePath       = "menuagent.db"
	DefaultPublishInterval = 60
	DefaultHealthInterval  = 60
)

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given: ./config.yaml, ~/.config/menuagent/config.yaml,
// /etc/menuagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "menuagent", "config.yaml"))
	}

	paths = append(paths, "/etc/menuagent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all menuagent configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Relay     RelayConfig     `yaml:"relay"`
	Generator GeneratorConfig `yaml:"generator"`
	Agent     AgentConfig     `yaml:"agent"`
	Chat      ChatConfig      `yaml:"chat"`
	Usage     UsageConfig     `yaml:"usage"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the query API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// RelayConfig defines the websocket message relay server. It runs on its
// own port, next to the query API.
type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"` // Default: 4000
}

// GeneratorConfig selects and tunes the language model backend.
type GeneratorConfig struct {
	Provider        string  `yaml:"provider"` // gemini, openai, ollama
	Model           string  `yaml:"model"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"` // openai-compatible or ollama endpoint
	TimeoutSec      int     `yaml:"timeout_sec"`

	// HealthIntervalSec is how often a healthy backend is probed for
	// /health. Negative disables probing.
	HealthIntervalSec int `yaml:"health_interval_sec"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	// MaxIterations caps generator calls per query. Values below 1 are
	// treated as 1 by the loop; negative values are rejected by Validate.
	MaxIterations int    `yaml:"max_iterations"`
	SystemPrompt  string `yaml:"system_prompt"`
}

// ChatConfig shapes the POST /api/chat responses.
type ChatConfig struct {
	FailureMessage string `yaml:"failure_message"`
	// ObservationAsSuccess answers with 200 instead of 404 when the reply
	// is a raw tool observation.
	ObservationAsSuccess bool `yaml:"observation_as_success"`
}

// UsageConfig enables the SQLite resolution ledger.
type UsageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MQTTConfig configures the optional telemetry publisher. Publishing is
// off when Broker is empty.
type MQTTConfig struct {
	Broker             string `yaml:"broker"` // e.g. mqtt://localhost:1883
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	DeviceName         string `yaml:"device_name"`
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
}

// Configured reports whether a broker is set.
func (m MQTTConfig) Configured() bool {
	return m.Broker != ""
}

// Load reads configuration from a YAML file, expanding ${VAR} references
// and applying the PORT and GEMINI_KEY environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillZeroes()
	return cfg, nil
}

// Default returns a configuration usable without a file.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: DefaultListenPort},
		Relay:  RelayConfig{Enabled: true, Port: DefaultRelayPort},
		Generator: GeneratorConfig{
			Provider:        ProviderGemini,
			Model:           DefaultModel,
			MaxOutputTokens: DefaultMaxOutputTokens,
			Temperature:     DefaultTemperature,
			TimeoutSec:      DefaultTimeoutSec,

			HealthIntervalSec: DefaultHealthInterval,
		},
		Agent: AgentConfig{
			MaxIterations: DefaultMaxIterations,
			SystemPrompt:  DefaultSystemPrompt,
		},
		Chat:  ChatConfig{FailureMessage: DefaultFailureMessage},
		Usage: UsageConfig{Path: DefaultUsagePath},
		MQTT: MQTTConfig{
			DeviceName:         "menuagent",
			PublishIntervalSec: DefaultPublishInterval,
		},
	}
}

// FromEnv returns Default with environment overrides applied. It is used
// when no config file exists, matching a bare PORT/GEMINI_KEY deployment.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Listen.Port = port
	}
	if v := os.Getenv("GEMINI_KEY"); v != "" && c.Generator.APIKey == "" {
		c.Generator.APIKey = v
	}
	return nil
}

// fillZeroes restores defaults for keys present in the file with empty
// values (e.g. "model:" with nothing after it).
func (c *Config) fillZeroes() {
	d := Default()
	if c.Generator.Provider == "" {
		c.Generator.Provider = d.Generator.Provider
	}
	if c.Generator.Model == "" {
		c.Generator.Model = d.Generator.Model
	}
	if c.Generator.TimeoutSec == 0 {
		c.Generator.TimeoutSec = d.Generator.TimeoutSec
	}
	if c.Generator.HealthIntervalSec == 0 {
		c.Generator.HealthIntervalSec = d.Generator.HealthIntervalSec
	}
	if c.Agent.SystemPrompt == "" {
		c.Agent.SystemPrompt = d.Agent.SystemPrompt
	}
	if c.Chat.FailureMessage == "" {
		c.Chat.FailureMessage = d.Chat.FailureMessage
	}
	if c.Usage.Path == "" {
		c.Usage.Path = d.Usage.Path
	}
	if c.MQTT.PublishIntervalSec <= 0 {
		c.MQTT.PublishIntervalSec = d.MQTT.PublishIntervalSec
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = d.MQTT.DeviceName
	}
}

// Validate checks the configuration for values the server cannot run
// with. Model names and sampling parameters are passed through to the
// provider unchecked.
func (c *Config) Validate() error {
	var errs []error

	switch c.Generator.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("generator.provider %q is not supported (valid: gemini, openai, ollama)", c.Generator.Provider))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := ParseLogFormat(c.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("log_format: %w", err))
	}
	if !validPort(c.Listen.Port) {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Relay.Enabled && !validPort(c.Relay.Port) {
		errs = append(errs, fmt.Errorf("relay.port %d out of range", c.Relay.Port))
	}
	if c.Agent.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must not be negative, got %d", c.Agent.MaxIterations))
	}
	if c.Generator.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("generator.timeout_sec must not be negative, got %d", c.Generator.TimeoutSec))
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
