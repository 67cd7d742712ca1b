// Package config loads deep-research CLI configuration from defaults, an
// optional YAML file in the working directory, a workspace .env, and
// environment variable overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".deep-research.yaml"

// Config holds all deep-research configuration.
type Config struct {
	// Interactions API
	Agent   string `yaml:"agent"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// Polling
	Timeout string        `yaml:"timeout"`
	Polling PollingConfig `yaml:"polling"`

	// Workspace state file
	StatePath string `yaml:"state_path"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PollingConfig configures the wait loop.
type PollingConfig struct {
	Adaptive     bool `yaml:"adaptive"`
	ShowThoughts bool `yaml:"show_thoughts"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent:   "deep-research-pro-preview-12-2025",
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Timeout: "30m",
		Polling: PollingConfig{
			Adaptive:     true,
			ShowThoughts: true,
		},
		StatePath: ".gemini-research.json",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way, after a workspace
// .env (if present) has been loaded.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	_ = loadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// loadDotEnv loads a .env file from the working directory if one exists.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API key from environment (check in priority order, first set wins)
	for _, name := range []string{"GEMINI_DEEP_RESEARCH_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			c.APIKey = key
			break
		}
	}

	if agent := os.Getenv("GEMINI_DEEP_RESEARCH_AGENT"); agent != "" {
		c.Agent = agent
	}
	if url := os.Getenv("GEMINI_DEEP_RESEARCH_BASE_URL"); url != "" {
		c.BaseURL = url
	}
	if path := os.Getenv("GEMINI_DEEP_RESEARCH_STATE"); path != "" {
		c.StatePath = path
	}
}

// GetTimeout returns the polling timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key not configured (set GEMINI_DEEP_RESEARCH_API_KEY, GOOGLE_API_KEY, or GEMINI_API_KEY)")
	}
	return nil
}
