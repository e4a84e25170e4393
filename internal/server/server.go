// ABOUTME: HTTP server wiring for the bassi API, WebSocket, and metrics.
// ABOUTME: Routes are registered on a stdlib mux with method patterns.

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bassi-ai/bassi/internal/pool"
	"github.com/bassi-ai/bassi/internal/session"
	"github.com/bassi-ai/bassi/internal/settings"
	"github.com/bassi-ai/bassi/internal/workspace"
)

// Config carries the server's collaborators and settings.
type Config struct {
	Addr     string
	BasePath string

	Pool     *pool.Pool
	Index    *workspace.Index
	Manager  *session.Manager
	Settings *settings.Store

	// JWTSecret enables bearer-token auth on the API when non-empty.
	JWTSecret string

	MetricsEnabled bool
	MetricsPath    string

	Logger *slog.Logger
}

// Server serves the management API, the browser WebSocket, and metrics.
type Server struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Server
}

// New creates a Server. Call Start to begin serving.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "server"),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the full route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/chats", s.handleListChats)
	mux.HandleFunc("GET /api/chats/search", s.handleSearchChats)
	mux.HandleFunc("GET /api/chats/{id}", s.handleGetChat)
	mux.HandleFunc("DELETE /api/chats/{id}", s.handleDeleteChat)
	mux.HandleFunc("POST /api/chats/{id}/name", s.handleRenameChat)
	mux.HandleFunc("GET /api/chats/{id}/export", s.handleExportChat)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	if s.cfg.MetricsEnabled {
		path := s.cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.Handler())
	}

	var handler http.Handler = mux
	if s.cfg.JWTSecret != "" {
		handler = BearerAuth(NewTokenVerifier([]byte(s.cfg.JWTSecret)))(mux)
	}
	return handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
