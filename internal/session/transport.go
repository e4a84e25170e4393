// ABOUTME: Transport abstraction over the browser WebSocket.
// ABOUTME: Production uses gorilla/websocket; tests use an in-memory fake.

package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is the minimal surface the manager needs from a WebSocket:
// receive, send JSON, close with a code and reason.
type Transport interface {
	// Receive blocks for the next inbound message. It returns an error
	// when the connection is gone.
	Receive() ([]byte, error)

	// Send marshals v as JSON and writes it to the client.
	Send(v any) error

	// Close closes the connection with a status code and reason.
	Close(code int, reason string) error
}

// WSTransport adapts a gorilla websocket connection. Gorilla connections
// do not allow concurrent writers, and message tasks run concurrently,
// so writes are serialized with a mutex.
type WSTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWSTransport wraps an upgraded websocket connection.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

func (t *WSTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading websocket: %w", err)
	}
	return data, nil
}

func (t *WSTransport) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) Close(code int, reason string) error {
	t.writeMu.Lock()
	t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	t.writeMu.Unlock()
	return t.conn.Close()
}
