// ABOUTME: WebSocket upgrade endpoint for browser chat connections.
// ABOUTME: Hands the upgraded socket to the session manager.

package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bassi-ai/bassi/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API and WebSocket are same-origin behind the bearer check;
	// origin filtering stays permissive for local tooling.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket handles GET /ws. An optional ?chat_id= resumes an
// existing chat; without it a fresh chat is created. Runs for the life
// of the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	transport := session.NewWSTransport(conn)
	if err := s.cfg.Manager.HandleConnection(r.Context(), transport, chatID); err != nil {
		s.logger.Warn("connection ended with error", "error", err)
	}
}
