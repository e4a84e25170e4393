// ABOUTME: Interfaces and event types for the external agent backend.
// ABOUTME: The rest of the system consumes backends as black boxes.

package backend

import (
	"context"
	"errors"
)

// ErrBackendUnavailable indicates the backend could not be reached when
// establishing a session.
var ErrBackendUnavailable = errors.New("backend unavailable")

// EventType identifies one kind of streamed response event.
type EventType string

const (
	EventThinking EventType = "thinking"
	EventText     EventType = "text"
	EventToolUse  EventType = "tool_use"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one streamed response event from the backend. Done is set on
// the terminal event of a stream (EventDone or EventError).
type Event struct {
	Type      EventType `json:"type"`
	Text      string    `json:"text,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolInput string    `json:"tool_input,omitempty"`
	Error     string    `json:"error,omitempty"`
	Done      bool      `json:"done,omitempty"`
}

// Message is one conversation message in backend wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one warm connection to the agent backend, reusable across
// chats. Implementations must tolerate Send being called again after a
// failed request: any error from a single Send is recoverable per
// request, never fatal to the session.
type Session interface {
	// Send submits the full conversation (ending with the newest user
	// message) and returns a stream of response events. The stream is
	// closed after its terminal event. Cancelling ctx stops streaming
	// for this request only.
	Send(ctx context.Context, sessionID string, messages []Message) (<-chan *Event, error)

	// SetModel changes the model used by subsequent Send calls.
	SetModel(model string)

	// Model returns the currently configured model.
	Model() string

	// Close releases the underlying connection.
	Close() error
}

// Backend establishes sessions to an external agent service.
type Backend interface {
	Connect(ctx context.Context) (Session, error)
}
