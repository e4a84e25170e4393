// ABOUTME: JSON API handlers for chat management and settings.
// ABOUTME: Chat listings come from the index; transcripts from workspaces.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bassi-ai/bassi/internal/export"
	"github.com/bassi-ai/bassi/internal/settings"
	"github.com/bassi-ai/bassi/internal/workspace"
)

// ChatResponse is the JSON shape for one chat in listings.
type ChatResponse struct {
	ChatID       string `json:"chat_id"`
	DisplayName  string `json:"display_name"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
	MessageCount int    `json:"message_count"`
	FileCount    int    `json:"file_count"`
}

func chatResponse(e *workspace.Entry) ChatResponse {
	return ChatResponse{
		ChatID:       e.ChatID,
		DisplayName:  e.DisplayName,
		State:        string(e.State),
		CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastActivity: e.LastActivity.Format("2006-01-02T15:04:05Z07:00"),
		MessageCount: e.MessageCount,
		FileCount:    e.FileCount,
	}
}

// handleListChats handles GET /api/chats.
// Supports ?limit, ?offset, ?sort, ?desc, and ?state query parameters.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := workspace.ListOptions{
		SortBy: workspace.SortLastActivity,
		Desc:   true,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}
	if v := q.Get("sort"); v != "" {
		switch workspace.SortField(v) {
		case workspace.SortLastActivity, workspace.SortCreatedAt,
			workspace.SortMessageCount, workspace.SortFileCount:
			opts.SortBy = workspace.SortField(v)
		default:
			writeError(w, http.StatusBadRequest, "invalid sort field: "+v)
			return
		}
	}
	if v := q.Get("desc"); v != "" {
		opts.Desc = v == "true" || v == "1"
	}
	if v := q.Get("state"); v != "" {
		opts.FilterState = workspace.State(v)
	}

	entries := s.cfg.Index.List(opts)
	response := make([]ChatResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, chatResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSearchChats handles GET /api/chats/search?q=term.
func (s *Server) handleSearchChats(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	entries := s.cfg.Index.Search(query)
	response := make([]ChatResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, chatResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}

// ChatDetailResponse includes the transcript alongside the metadata.
type ChatDetailResponse struct {
	ChatResponse
	Turns []TurnResponse `json:"turns"`
}

// TurnResponse is one transcript turn.
type TurnResponse struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// handleGetChat handles GET /api/chats/{id}.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")

	entry, ok := s.cfg.Index.Get(chatID)
	if !ok {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}

	ws, err := workspace.Load(s.cfg.BasePath, chatID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error("loading chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load chat")
		return
	}

	turns := ws.History()
	response := ChatDetailResponse{
		ChatResponse: chatResponse(entry),
		Turns:        make([]TurnResponse, 0, len(turns)),
	}
	for _, turn := range turns {
		response.Turns = append(response.Turns, TurnResponse{
			Role:      turn.Role,
			Text:      turn.Text,
			Timestamp: turn.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// handleDeleteChat handles DELETE /api/chats/{id}.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")

	ws, err := workspace.Load(s.cfg.BasePath, chatID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error("loading chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load chat")
		return
	}

	if err := ws.Delete(); err != nil {
		s.logger.Error("deleting chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot delete chat")
		return
	}
	if err := s.cfg.Index.Remove(chatID); err != nil {
		s.logger.Warn("removing chat from index failed", "chat_id", chatID, "error", err)
	}
	s.logger.Info("chat deleted", "chat_id", chatID)
	w.WriteHeader(http.StatusNoContent)
}

// RenameRequest is the body for POST /api/chats/{id}/name.
type RenameRequest struct {
	Name string `json:"name"`
}

// handleRenameChat handles POST /api/chats/{id}/name.
func (s *Server) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ws, err := workspace.Load(s.cfg.BasePath, chatID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error("loading chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load chat")
		return
	}

	if err := ws.SetDisplayName(req.Name); err != nil {
		s.logger.Error("renaming chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot rename chat")
		return
	}
	if err := s.cfg.Index.Update(ws); err != nil {
		s.logger.Warn("index update failed", "chat_id", chatID, "error", err)
	}

	entry, _ := s.cfg.Index.Get(chatID)
	writeJSON(w, http.StatusOK, chatResponse(entry))
}

// handleExportChat handles GET /api/chats/{id}/export?format=md|json|html.
func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "md"
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := workspace.Load(s.cfg.BasePath, chatID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error("loading chat failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load chat")
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", chatID+"."+exporter.Extension()))
	if err := exporter.Export(ws, w); err != nil {
		// Headers are already out; all we can do is log.
		s.logger.Error("export failed", "chat_id", chatID, "format", format, "error", err)
	}
}

// SettingsResponse mirrors the settings store.
type SettingsResponse struct {
	Model          string `json:"model"`
	PermissionMode string `json:"permission_mode"`
}

// handleGetSettings handles GET /api/settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current := s.cfg.Settings.Get()
	writeJSON(w, http.StatusOK, SettingsResponse{
		Model:          current.Model,
		PermissionMode: string(current.PermissionMode),
	})
}

// handleUpdateSettings handles PUT /api/settings. A model change is
// pushed to every pooled session immediately.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	before := s.cfg.Settings.Get()
	updated, err := s.cfg.Settings.Update(settings.Settings{
		Model:          req.Model,
		PermissionMode: settings.PermissionMode(req.PermissionMode),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if updated.Model != before.Model {
		n := s.cfg.Pool.SetModelAll(updated.Model)
		s.logger.Info("model changed", "model", updated.Model, "sessions", n)
	}

	writeJSON(w, http.StatusOK, SettingsResponse{
		Model:          updated.Model,
		PermissionMode: string(updated.PermissionMode),
	})
}

// handleHealth handles GET /health: process liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyResponse reports pool and index health.
type ReadyResponse struct {
	Status     string `json:"status"`
	PoolSize   int    `json:"pool_size"`
	PoolInUse  int    `json:"pool_in_use"`
	ChatCount  int    `json:"chat_count"`
	Consistent bool   `json:"index_consistent"`
}

// handleReady handles GET /health/ready: readiness including an index
// consistency check against the filesystem.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	report, err := s.cfg.Index.VerifyConsistency()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "degraded"})
		return
	}

	response := ReadyResponse{
		Status:     "ok",
		PoolSize:   s.cfg.Pool.Size(),
		PoolInUse:  s.cfg.Pool.InUse(),
		ChatCount:  s.cfg.Index.Len(),
		Consistent: report.Consistent,
	}
	status := http.StatusOK
	if !response.Consistent {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}
