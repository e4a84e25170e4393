// Package config handles configuration loading for bassi.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  api_key: "${BASSI_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	pool:
//	  acquire_timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8765"  # API, WebSocket, and metrics
//
// Chat storage:
//
//	workspace:
//	  base_path: "~/.bassi/chats"
//
// Agent pool:
//
//	pool:
//	  size: 3
//	  acquire_timeout: "30s"
//
// Backend:
//
//	backend:
//	  provider: "openai"          # openai or scripted
//	  api_key: "${BASSI_API_KEY}"
//	  base_url: "https://api.openai.com/v1"
//	  model: "gpt-4o"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${BASSI_JWT_SECRET}"  # empty disables auth
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load() validates:
//
//   - Pool size is at least 1
//   - Backend provider is a known value
//   - An API key is present for the openai provider
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/bassi/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or start from defaults when no file exists:
//
//	cfg := config.Default()
package config
