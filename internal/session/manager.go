// ABOUTME: Orchestrates one browser WebSocket connection end to end.
// ABOUTME: Wires pool handle, workspace, backend streaming, and cleanup.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bassi-ai/bassi/internal/backend"
	"github.com/bassi-ai/bassi/internal/interact"
	"github.com/bassi-ai/bassi/internal/metrics"
	"github.com/bassi-ai/bassi/internal/pool"
	"github.com/bassi-ai/bassi/internal/workspace"
)

const (
	// RoleUser and RoleAssistant are the two turn roles in persisted history.
	RoleUser      = "user"
	RoleAssistant = "assistant"

	autoNameMaxWords = 6
	autoNameMaxLen   = 48
)

// Manager binds browser connections to pool handles and workspaces.
// Construct one per process and share it across connections.
type Manager struct {
	pool           *pool.Pool
	index          *workspace.Index
	questions      *interact.QuestionBroker
	grants         *interact.Grants
	basePath       string
	acquireTimeout time.Duration
	logger         *slog.Logger
}

// Config carries the manager's collaborators.
type Config struct {
	Pool           *pool.Pool
	Index          *workspace.Index
	Questions      *interact.QuestionBroker
	Grants         *interact.Grants
	BasePath       string
	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		pool:           cfg.Pool,
		index:          cfg.Index,
		questions:      cfg.Questions,
		grants:         cfg.Grants,
		basePath:       cfg.BasePath,
		acquireTimeout: timeout,
		logger:         logger.With("component", "session"),
	}
}

// connection is the ephemeral state of one live browser connection.
// It is never persisted.
type connection struct {
	browserID string
	transport Transport
	handle    *pool.Handle

	mu       sync.Mutex
	ws       *workspace.Workspace
	inflight map[string]context.CancelFunc

	tasks sync.WaitGroup
}

func (c *connection) workspace() *workspace.Workspace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *connection) setWorkspace(ws *workspace.Workspace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = ws
}

func (c *connection) trackInflight(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[id] = cancel
}

func (c *connection) untrackInflight(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

// cancelInflight cancels in-flight backend requests for this connection.
// With a request ID only that request is cancelled; with "" all of them
// are. The WebSocket itself is untouched either way.
func (c *connection) cancelInflight(requestID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if requestID != "" {
		if cancel, ok := c.inflight[requestID]; ok {
			cancel()
			return 1
		}
		return 0
	}
	for _, cancel := range c.inflight {
		cancel()
	}
	return len(c.inflight)
}

// HandleConnection runs the full lifecycle of one browser connection:
// acquire a handle, resolve the chat, replay history if resuming, then
// loop dispatching inbound messages until the connection drops. Cleanup
// always runs, however the connection ended.
func (m *Manager) HandleConnection(ctx context.Context, t Transport, requestedChatID string) error {
	browserID := uuid.New().String()
	logger := m.logger.With("browser_id", browserID)

	handle, err := m.pool.Acquire(ctx, browserID, m.acquireTimeout)
	if err != nil {
		if errors.Is(err, pool.ErrPoolExhausted) {
			logger.Warn("pool exhausted, rejecting connection")
			t.Send(ServerMessage{Type: TypeError, Error: "server busy: no agent available"})
			t.Close(CloseBusy, "server busy")
			return err
		}
		t.Close(CloseNormal, "cannot serve connection")
		return err
	}

	metrics.BrowserConnections.Inc()
	defer metrics.BrowserConnections.Dec()

	conn := &connection{
		browserID: browserID,
		transport: t,
		handle:    handle,
		inflight:  make(map[string]context.CancelFunc),
	}
	defer m.cleanup(conn, logger)

	ws, resumed, err := m.resolveWorkspace(requestedChatID)
	if err != nil {
		logger.Error("workspace resolution failed", "error", err)
		t.Send(ServerMessage{Type: TypeError, Error: "cannot open chat"})
		t.Close(CloseNormal, "workspace failure")
		return err
	}
	conn.setWorkspace(ws)
	m.bindChat(conn, ws, resumed)

	logger.Info("browser connected", "chat_id", ws.ID(), "resumed", resumed)

	m.sendChatInfo(conn, resumed)

	// Receive loop. Each chat message runs as an independent task so a
	// long-running backend call never stalls receipt of an interrupt.
	// The tradeoff is documented: responses to back-to-back prompts may
	// interleave.
	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	for {
		data, err := t.Receive()
		if err != nil {
			logger.Info("browser disconnected")
			return nil
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Send(ServerMessage{Type: TypeError, Error: "malformed message"})
			continue
		}
		metrics.MessagesTotal.WithLabelValues(msg.Type).Inc()

		switch msg.Type {
		case TypeChat:
			conn.tasks.Add(1)
			go func() {
				defer conn.tasks.Done()
				m.processChat(connCtx, conn, msg, logger)
			}()
		case TypeInterrupt:
			n := conn.cancelInflight(msg.RequestID)
			logger.Debug("interrupt", "request_id", msg.RequestID, "cancelled", n)
		case TypeSwitchChat:
			m.switchChat(conn, msg.ChatID, logger)
		case TypeSetName:
			m.setName(conn, msg.Name)
		case TypeAnswer:
			if err := m.questions.Answer(msg.QuestionID, msg.Answer); err != nil {
				t.Send(ServerMessage{Type: TypeError, Error: "unknown question"})
			}
		case TypeApproveTool:
			m.grants.Grant(browserID, msg.Tool)
		default:
			t.Send(ServerMessage{Type: TypeError, Error: "unknown message type: " + msg.Type})
		}
	}
}

// resolveWorkspace reuses the requested chat when a matching workspace
// exists; otherwise it mints a fresh ID. A requested ID with no valid
// workspace is never trusted as a new ID.
func (m *Manager) resolveWorkspace(requestedChatID string) (*workspace.Workspace, bool, error) {
	if requestedChatID != "" && workspace.Exists(m.basePath, requestedChatID) {
		ws, err := workspace.Load(m.basePath, requestedChatID)
		if err == nil {
			return ws, true, nil
		}
		if !errors.Is(err, workspace.ErrNotFound) {
			return nil, false, err
		}
		// Unparsable workspace: fall through and mint a new chat.
	}

	ws, err := workspace.Create(m.basePath, uuid.New().String())
	if err != nil {
		return nil, false, err
	}
	return ws, false, nil
}

// bindChat points the handle at a workspace and replays persisted
// history into it. The replay makes a freshly acquired handle
// indistinguishable from one that held the whole conversation.
func (m *Manager) bindChat(conn *connection, ws *workspace.Workspace, resumed bool) {
	conn.handle.BindWorkspace(ws.ID())
	if resumed {
		conn.handle.ReplaceHistory(historyToMessages(ws.History()))
	} else {
		conn.handle.ReplaceHistory(nil)
	}
	if err := m.index.Update(ws); err != nil {
		m.logger.Warn("index update failed", "chat_id", ws.ID(), "error", err)
	}
}

// processChat handles one inbound chat message: persist the user turn,
// stream the backend response, persist the assistant turn. Failures are
// reported as an error event for this message only; the receive loop
// is unaffected.
func (m *Manager) processChat(ctx context.Context, conn *connection, msg ClientMessage, logger *slog.Logger) {
	start := time.Now()
	text := msg.Text
	ws := conn.workspace()

	if err := ws.AppendTurn(RoleUser, text); err != nil {
		logger.Error("persisting user turn failed", "error", err)
		conn.transport.Send(ServerMessage{Type: TypeError, RequestID: msg.RequestID, Error: "cannot persist message"})
		return
	}
	m.maybeAutoName(conn, ws, text)
	if err := m.index.Update(ws); err != nil {
		logger.Warn("index update failed", "chat_id", ws.ID(), "error", err)
	}

	conn.handle.Append(RoleUser, text)

	reqID := msg.RequestID
	if reqID == "" {
		reqID = uuid.New().String()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	conn.trackInflight(reqID, cancel)
	defer conn.untrackInflight(reqID)

	stream, err := conn.handle.Session().Send(reqCtx, ws.ID(), conn.handle.History())
	if err != nil {
		logger.Warn("backend send failed", "error", err)
		conn.transport.Send(ServerMessage{Type: TypeError, RequestID: reqID, Error: "agent error: " + err.Error()})
		metrics.MessageLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return
	}

	var finalText string
	outcome := "ok"
	events := 0
	for evt := range stream {
		events++
		conn.transport.Send(ServerMessage{Type: TypeEvent, RequestID: reqID, Event: evt})
		switch evt.Type {
		case backend.EventDone:
			finalText = evt.Text
		case backend.EventError:
			outcome = "error"
		}
	}
	conn.handle.RecordMessage(events)

	if outcome == "ok" && finalText != "" {
		conn.handle.Append(RoleAssistant, finalText)
		if err := ws.AppendTurn(RoleAssistant, finalText); err != nil {
			logger.Error("persisting assistant turn failed", "error", err)
		}
		if err := m.index.Update(ws); err != nil {
			logger.Warn("index update failed", "chat_id", ws.ID(), "error", err)
		}
	}
	metrics.MessageLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// maybeAutoName derives a display name from the first user message of a
// brand-new chat.
func (m *Manager) maybeAutoName(conn *connection, ws *workspace.Workspace, text string) {
	if ws.State() != workspace.StateCreated {
		return
	}
	name := deriveName(text)
	if name == "" {
		return
	}
	if err := ws.AutoName(name); err != nil {
		m.logger.Warn("auto-name failed", "chat_id", ws.ID(), "error", err)
		return
	}
	conn.handle.CachePut("auto_name", name)
	m.sendChatInfo(conn, false)
}

// deriveName truncates the prompt to a short title.
func deriveName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > autoNameMaxWords {
		fields = fields[:autoNameMaxWords]
	}
	name := strings.Join(fields, " ")
	if len(name) > autoNameMaxLen {
		name = name[:autoNameMaxLen]
	}
	return name
}

// switchChat rebinds the connection to another chat without dropping the
// WebSocket or reacquiring a pool handle. An abandoned empty chat is
// deleted on the way out, same as at disconnect.
func (m *Manager) switchChat(conn *connection, newChatID string, logger *slog.Logger) {
	conn.cancelInflight("")
	conn.tasks.Wait()

	old := conn.workspace()

	var next *workspace.Workspace
	resumed := false
	if newChatID != "" && workspace.Exists(m.basePath, newChatID) {
		ws, err := workspace.Load(m.basePath, newChatID)
		if err == nil {
			next, resumed = ws, true
		}
	}
	if next == nil {
		ws, err := workspace.Create(m.basePath, uuid.New().String())
		if err != nil {
			logger.Error("switch: creating workspace failed", "error", err)
			conn.transport.Send(ServerMessage{Type: TypeError, Error: "cannot switch chat"})
			return
		}
		next = ws
	}

	m.discardIfAbandoned(old, logger)

	conn.setWorkspace(next)
	m.bindChat(conn, next, resumed)
	logger.Info("switched chat", "from", old.ID(), "to", next.ID(), "resumed", resumed)
	m.sendChatInfo(conn, resumed)
}

// setName applies a user-assigned display name.
func (m *Manager) setName(conn *connection, name string) {
	ws := conn.workspace()
	if strings.TrimSpace(name) == "" {
		conn.transport.Send(ServerMessage{Type: TypeError, Error: "name cannot be empty"})
		return
	}
	if err := ws.SetDisplayName(name); err != nil {
		conn.transport.Send(ServerMessage{Type: TypeError, Error: "cannot rename chat"})
		return
	}
	if err := m.index.Update(ws); err != nil {
		m.logger.Warn("index update failed", "chat_id", ws.ID(), "error", err)
	}
	m.sendChatInfo(conn, false)
}

func (m *Manager) sendChatInfo(conn *connection, resumed bool) {
	ws := conn.workspace()
	conn.transport.Send(ServerMessage{
		Type:         TypeChatInfo,
		ChatID:       ws.ID(),
		DisplayName:  ws.DisplayName(),
		Resumed:      resumed,
		MessageCount: ws.Stats().MessageCount,
	})
}

// cleanup runs on every disconnect path: cancel in-flight requests and
// pending questions, drop permission grants, discard an abandoned empty
// chat, and release the pool handle.
func (m *Manager) cleanup(conn *connection, logger *slog.Logger) {
	conn.cancelInflight("")
	conn.tasks.Wait()

	m.questions.CancelAll(conn.browserID)
	m.grants.ClearSession(conn.browserID)

	if ws := conn.workspace(); ws != nil {
		m.discardIfAbandoned(ws, logger)
	}

	m.pool.Release(conn.handle)
	logger.Info("connection cleaned up")
}

// discardIfAbandoned deletes a workspace that never accumulated a
// message, along with its index entry. Populated chats persist.
func (m *Manager) discardIfAbandoned(ws *workspace.Workspace, logger *slog.Logger) {
	if ws.Stats().MessageCount > 0 {
		if err := m.index.Update(ws); err != nil {
			logger.Warn("index update failed", "chat_id", ws.ID(), "error", err)
		}
		return
	}
	chatID := ws.ID()
	if err := ws.Delete(); err != nil {
		logger.Warn("deleting abandoned chat failed", "chat_id", chatID, "error", err)
		return
	}
	if err := m.index.Remove(chatID); err != nil {
		logger.Warn("removing abandoned chat from index failed", "chat_id", chatID, "error", err)
	}
	logger.Info("abandoned chat discarded", "chat_id", chatID)
}

// historyToMessages converts persisted turns to backend wire messages.
func historyToMessages(turns []workspace.Turn) []backend.Message {
	msgs := make([]backend.Message, 0, len(turns))
	for _, turn := range turns {
		msgs = append(msgs, backend.Message{Role: turn.Role, Content: turn.Text})
	}
	return msgs
}
