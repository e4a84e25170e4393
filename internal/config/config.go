// ABOUTME: Configuration loading and parsing for bassi
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bassi configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Pool      PoolConfig      `yaml:"pool"`
	Backend   BackendConfig   `yaml:"backend"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// WorkspaceConfig holds chat workspace storage configuration
type WorkspaceConfig struct {
	BasePath string `yaml:"base_path"`
}

// PoolConfig holds agent pool sizing and timing configuration
type PoolConfig struct {
	Size           int           `yaml:"size"`
	AcquireTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	AcquireTimeoutRaw string `yaml:"acquire_timeout"`
}

// BackendConfig holds agent backend configuration
type BackendConfig struct {
	// Provider selects the backend implementation: "openai" or "scripted"
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret disables bearer-token checks.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Pool.AcquireTimeout = 30 * time.Second
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8765"
	}
	if c.Workspace.BasePath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Workspace.BasePath = home + "/.bassi/chats"
		} else {
			c.Workspace.BasePath = ".bassi/chats"
		}
	}
	if c.Pool.Size == 0 {
		c.Pool.Size = 3
	}
	if c.Backend.Provider == "" {
		c.Backend.Provider = "scripted"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Workspace.BasePath == "" {
		return fmt.Errorf("workspace.base_path is required")
	}

	if c.Pool.Size < 1 {
		return fmt.Errorf("pool.size must be at least 1, got %d", c.Pool.Size)
	}

	switch c.Backend.Provider {
	case "scripted":
	case "openai":
		if c.Backend.APIKey == "" {
			return fmt.Errorf("backend.api_key is required when backend.provider is openai")
		}
	default:
		return fmt.Errorf("backend.provider must be \"openai\" or \"scripted\", got %q", c.Backend.Provider)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Pool.AcquireTimeoutRaw != "" {
		cfg.Pool.AcquireTimeout, err = time.ParseDuration(cfg.Pool.AcquireTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing acquire_timeout %q: %w", cfg.Pool.AcquireTimeoutRaw, err)
		}
	} else {
		cfg.Pool.AcquireTimeout = 30 * time.Second
	}

	return nil
}
