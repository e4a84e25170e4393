// ABOUTME: Entry point for the bassi assistant server
// ABOUTME: Serves the chat WebSocket, management API, and metrics

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/bassi-ai/bassi/internal/backend"
	"github.com/bassi-ai/bassi/internal/config"
	"github.com/bassi-ai/bassi/internal/interact"
	"github.com/bassi-ai/bassi/internal/metrics"
	"github.com/bassi-ai/bassi/internal/pool"
	"github.com/bassi-ai/bassi/internal/server"
	"github.com/bassi-ai/bassi/internal/session"
	"github.com/bassi-ai/bassi/internal/settings"
	"github.com/bassi-ai/bassi/internal/workspace"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _                  _
 | |__   __ _ ___ __(_)
 | '_ \ / _' / __/ __| |
 | |_) | (_| \__ \__ \ |
 |_.__/ \__,_|___/___/_|
`

// getConfigPath returns the path to the bassi config file.
// Priority: BASSI_CONFIG env var > XDG_CONFIG_HOME/bassi/config.yaml > ~/.config/bassi/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BASSI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "bassi", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: bassi <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the assistant server")
		fmt.Println("  init                   Create a config file with defaults")
		fmt.Println("  health                 Check server health")
		fmt.Println("  token --sub NAME       Mint an API bearer token")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Chats:    %s\n", cfg.Workspace.BasePath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.Provider)
	green.Print("    ▶ ")
	fmt.Printf("Pool:     %d sessions\n", cfg.Pool.Size)
	fmt.Println()

	logger.Info("starting bassi",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.Provider,
		"pool_size", cfg.Pool.Size,
	)

	metrics.MustRegister()

	if err := os.MkdirAll(cfg.Workspace.BasePath, 0755); err != nil {
		return fmt.Errorf("creating chat directory: %w", err)
	}

	index, err := workspace.NewIndex(cfg.Workspace.BasePath, logger)
	if err != nil {
		return fmt.Errorf("building chat index: %w", err)
	}

	store, err := settings.NewStore(
		filepath.Join(cfg.Workspace.BasePath, "settings.json"),
		settings.Settings{Model: cfg.Backend.Model, PermissionMode: settings.PermissionPrompt},
	)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	b, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	p, err := pool.New(ctx, b, cfg.Pool.Size, logger)
	if err != nil {
		return fmt.Errorf("connecting agent pool: %w", err)
	}

	// Settings may carry a model chosen after the config file was written.
	if model := store.Get().Model; model != "" && model != cfg.Backend.Model {
		p.SetModelAll(model)
	}

	mgr := session.NewManager(session.Config{
		Pool:           p,
		Index:          index,
		Questions:      interact.NewQuestionBroker(),
		Grants:         interact.NewGrants(0),
		BasePath:       cfg.Workspace.BasePath,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
		Logger:         logger,
	})

	srv := server.New(server.Config{
		Addr:           cfg.Server.HTTPAddr,
		BasePath:       cfg.Workspace.BasePath,
		Pool:           p,
		Index:          index,
		Manager:        mgr,
		Settings:       store,
		JWTSecret:      cfg.Auth.JWTSecret,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pool shutdown incomplete", "error", err)
	}
	logger.Info("goodbye")
	return nil
}

// buildBackend selects the agent backend from config.
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Backend.Provider {
	case "openai":
		return backend.NewOpenAIBackend(cfg.Backend.APIKey, cfg.Backend.BaseURL, cfg.Backend.Model)
	case "scripted":
		return &backend.ScriptedBackend{Model: cfg.Backend.Model}, nil
	default:
		return nil, fmt.Errorf("unknown backend provider: %s", cfg.Backend.Provider)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// runInit writes a starter config file with a random JWT secret.
func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	chatPath := filepath.Join(homeDir, ".bassi", "chats")

	configContent := fmt.Sprintf(`# bassi configuration
# Generated by bassi init

server:
  http_addr: "localhost:8765"

workspace:
  base_path: "%s"

pool:
  size: 3
  acquire_timeout: "30s"

backend:
  provider: "scripted"
  # provider: "openai"
  # api_key: "${BASSI_API_KEY}"
  # model: "gpt-4o"

auth:
  jwt_secret: "%s"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`, chatPath, jwtSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", strings.TrimPrefix(cfg.Server.HTTPAddr, "http://"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, string(body))
	}

	fmt.Println(string(body))
	return nil
}

// runToken mints a bearer token for the configured JWT secret.
// Supports both "--sub value" and "--sub=value" formats.
func runToken() error {
	var subject string
	expiresIn := 30 * 24 * time.Hour

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--sub" || arg == "-s":
			if i+1 >= len(args) {
				return fmt.Errorf("--sub requires a value")
			}
			subject = args[i+1]
			i++
		case strings.HasPrefix(arg, "--sub="):
			subject = strings.TrimPrefix(arg, "--sub=")
		case arg == "--expires" || arg == "-e":
			if i+1 >= len(args) {
				return fmt.Errorf("--expires requires a value")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --expires: %w", err)
			}
			expiresIn = d
			i++
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if subject == "" {
		return fmt.Errorf("--sub flag is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured (run: bassi init)")
	}

	token, err := server.NewTokenVerifier([]byte(cfg.Auth.JWTSecret)).Generate(subject, expiresIn)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	fmt.Println(token)
	return nil
}
