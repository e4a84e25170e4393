// ABOUTME: In-process scripted backend for development and tests.
// ABOUTME: Selected with provider "scripted" in the backend config.

package backend

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScriptedBackend produces canned responses without any network I/O.
// It powers local development and most of the test suite.
type ScriptedBackend struct {
	// Reply computes the response text for a conversation. When nil, the
	// last user message is echoed back.
	Reply func(messages []Message) string

	// Delay is inserted before each streamed event, to exercise
	// cancellation and interleaving behavior.
	Delay time.Duration

	// Model is the initial model reported by new sessions.
	Model string

	// ConnectErr, when set, makes Connect fail.
	ConnectErr error

	mu       sync.Mutex
	connects int
}

// Connect returns a new scripted session.
func (b *ScriptedBackend) Connect(ctx context.Context) (Session, error) {
	if b.ConnectErr != nil {
		return nil, b.ConnectErr
	}
	b.mu.Lock()
	b.connects++
	b.mu.Unlock()

	model := b.Model
	if model == "" {
		model = "scripted-1"
	}
	return &scriptedSession{backend: b, model: model}, nil
}

// Connects returns how many sessions have been established.
func (b *ScriptedBackend) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

type scriptedSession struct {
	backend *ScriptedBackend
	mu      sync.Mutex
	model   string
	closed  bool
}

func (s *scriptedSession) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

func (s *scriptedSession) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSession) Send(ctx context.Context, sessionID string, messages []Message) (<-chan *Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session closed")
	}
	s.mu.Unlock()

	reply := ""
	if s.backend.Reply != nil {
		reply = s.backend.Reply(messages)
	} else if len(messages) > 0 {
		reply = messages[len(messages)-1].Content
	}

	out := make(chan *Event, 4)
	go func() {
		defer close(out)
		events := []*Event{
			{Type: EventThinking, Text: "thinking"},
			{Type: EventText, Text: reply},
			{Type: EventDone, Text: reply, Done: true},
		}
		for _, evt := range events {
			if s.backend.Delay > 0 {
				select {
				case <-time.After(s.backend.Delay):
				case <-ctx.Done():
					out <- &Event{Type: EventError, Error: "request cancelled", Done: true}
					return
				}
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
