// ABOUTME: Wire types for the browser WebSocket protocol.
// ABOUTME: Inbound client messages and outbound server messages.

package session

import "github.com/bassi-ai/bassi/internal/backend"

// Inbound message types.
const (
	TypeChat        = "chat"
	TypeInterrupt   = "interrupt"
	TypeSwitchChat  = "switch_chat"
	TypeSetName     = "set_name"
	TypeAnswer      = "answer"
	TypeApproveTool = "approve_tool"
)

// Outbound message types.
const (
	TypeEvent    = "event"
	TypeChatInfo = "chat_info"
	TypeError    = "error"
	TypeQuestion = "question"
)

// WebSocket close codes. CloseBusy is 1013 (try again later), sent when
// the pool is exhausted.
const (
	CloseNormal = 1000
	CloseBusy   = 1013
)

// ClientMessage is one inbound browser message. RequestID is an optional
// client-chosen correlation ID for chat messages; an interrupt carrying
// a RequestID cancels only that request, a bare interrupt cancels every
// in-flight request on the connection.
type ClientMessage struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	Text       string `json:"text,omitempty"`
	ChatID     string `json:"chat_id,omitempty"`
	Name       string `json:"name,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Tool       string `json:"tool,omitempty"`
}

// ServerMessage is one outbound message to the browser. Event messages
// echo the RequestID of the chat message they answer, since responses to
// back-to-back prompts may interleave.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	// TypeEvent
	Event *backend.Event `json:"event,omitempty"`

	// TypeChatInfo
	ChatID       string `json:"chat_id,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Resumed      bool   `json:"resumed,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`

	// TypeError
	Error string `json:"error,omitempty"`

	// TypeQuestion
	QuestionID string `json:"question_id,omitempty"`
	Question   string `json:"question,omitempty"`
}
