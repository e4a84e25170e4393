// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8765"

workspace:
  base_path: "/var/lib/bassi/chats"

pool:
  size: 5
  acquire_timeout: "45s"

backend:
  provider: "openai"
  api_key: "sk-test"
  base_url: "https://api.example.com/v1"
  model: "gpt-4o"

auth:
  jwt_secret: "super-secret"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8765" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8765")
	}
	if cfg.Workspace.BasePath != "/var/lib/bassi/chats" {
		t.Errorf("Workspace.BasePath = %q, want %q", cfg.Workspace.BasePath, "/var/lib/bassi/chats")
	}

	// Verify pool config with duration parsing
	if cfg.Pool.Size != 5 {
		t.Errorf("Pool.Size = %d, want 5", cfg.Pool.Size)
	}
	if cfg.Pool.AcquireTimeout != 45*time.Second {
		t.Errorf("Pool.AcquireTimeout = %v, want %v", cfg.Pool.AcquireTimeout, 45*time.Second)
	}

	// Verify backend config
	if cfg.Backend.Provider != "openai" {
		t.Errorf("Backend.Provider = %q, want %q", cfg.Backend.Provider, "openai")
	}
	if cfg.Backend.APIKey != "sk-test" {
		t.Errorf("Backend.APIKey = %q, want %q", cfg.Backend.APIKey, "sk-test")
	}
	if cfg.Backend.BaseURL != "https://api.example.com/v1" {
		t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, "https://api.example.com/v1")
	}
	if cfg.Backend.Model != "gpt-4o" {
		t.Errorf("Backend.Model = %q, want %q", cfg.Backend.Model, "gpt-4o")
	}

	if cfg.Auth.JWTSecret != "super-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "super-secret")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("BASSI_TEST_API_KEY", "sk-from-env")
	t.Setenv("BASSI_TEST_SECRET", "jwt-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: ":8765"

workspace:
  base_path: "./chats"

backend:
  provider: "openai"
  api_key: "${BASSI_TEST_API_KEY}"

auth:
  jwt_secret: "${BASSI_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.APIKey != "sk-from-env" {
		t.Errorf("Backend.APIKey = %q, want %q", cfg.Backend.APIKey, "sk-from-env")
	}
	if cfg.Auth.JWTSecret != "jwt-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "jwt-from-env")
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	os.Unsetenv("BASSI_TEST_MISSING")

	configPath := writeConfig(t, `
server:
  http_addr: ":8765"

workspace:
  base_path: "./chats"

auth:
  jwt_secret: "${BASSI_TEST_MISSING}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "" {
		t.Errorf("Auth.JWTSecret = %q, want empty", cfg.Auth.JWTSecret)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
workspace:
  base_path: "./chats"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":8765" {
		t.Errorf("Server.HTTPAddr = %q, want default %q", cfg.Server.HTTPAddr, ":8765")
	}
	if cfg.Pool.Size != 3 {
		t.Errorf("Pool.Size = %d, want default 3", cfg.Pool.Size)
	}
	if cfg.Pool.AcquireTimeout != 30*time.Second {
		t.Errorf("Pool.AcquireTimeout = %v, want default %v", cfg.Pool.AcquireTimeout, 30*time.Second)
	}
	if cfg.Backend.Provider != "scripted" {
		t.Errorf("Backend.Provider = %q, want default %q", cfg.Backend.Provider, "scripted")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8765"

workspace:
  base_path: "./chats"

pool:
  acquire_timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() error = nil, want duration parse error")
	}
	if !strings.Contains(err.Error(), "acquire_timeout") {
		t.Errorf("error %q does not mention acquire_timeout", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want file error")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	configPath := writeConfig(t, "server: [this is: not valid\n")

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero pool size",
			mutate:  func(c *Config) { c.Pool.Size = -1 },
			wantErr: "pool.size",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Backend.Provider = "carrier-pigeon" },
			wantErr: "backend.provider",
		},
		{
			name:    "openai without api key",
			mutate:  func(c *Config) { c.Backend.Provider = "openai" },
			wantErr: "backend.api_key",
		},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
