// ABOUTME: Streaming Chat Completions adapter for OpenAI-compatible backends.
// ABOUTME: Parses the SSE response stream into backend events.

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OpenAIBackend connects to an OpenAI-compatible Chat Completions API.
// It works against api.openai.com and any proxy speaking the same wire
// format.
type OpenAIBackend struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIBackend creates a backend for the given API. baseURL defaults
// to https://api.openai.com/v1 and model to gpt-4o-mini.
func NewOpenAIBackend(apiKey, baseURL, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIBackend{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Connect verifies the API is reachable and returns a new session.
func (b *OpenAIBackend) Connect(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: probe returned %d", ErrBackendUnavailable, resp.StatusCode)
	}

	return &openAISession{backend: b, model: b.model}, nil
}

// openAISession is one logical session. The Chat Completions API is
// stateless, so the session carries only its model configuration; the
// conversation context arrives with every Send.
type openAISession struct {
	backend *OpenAIBackend
	mu      sync.Mutex
	model   string
}

func (s *openAISession) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

func (s *openAISession) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *openAISession) Close() error {
	return nil
}

// chatRequest is the Chat Completions request body.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	User     string    `json:"user,omitempty"`
}

// chatChunk is one streamed completion chunk.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Send submits the conversation and streams response events. The returned
// channel is closed after the terminal event.
func (s *openAISession) Send(ctx context.Context, sessionID string, messages []Message) (<-chan *Event, error) {
	body, err := json.Marshal(chatRequest{
		Model:    s.Model(),
		Messages: messages,
		Stream:   true,
		User:     sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.backend.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.backend.apiKey)

	resp, err := s.backend.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(data))
	}

	out := make(chan *Event, 16)
	go s.streamEvents(ctx, resp.Body, out)
	return out, nil
}

// streamEvents parses the SSE body into events. Each "data:" line carries
// one JSON chunk; the stream ends with "data: [DONE]".
func (s *openAISession) streamEvents(ctx context.Context, body io.ReadCloser, out chan<- *Event) {
	defer close(out)
	defer body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- &Event{Type: EventError, Error: "request cancelled", Done: true}
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				full.WriteString(choice.Delta.Content)
				out <- &Event{Type: EventText, Text: choice.Delta.Content}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- &Event{Type: EventError, Error: fmt.Sprintf("reading stream: %v", err), Done: true}
		return
	}

	out <- &Event{Type: EventDone, Text: full.String(), Done: true}
}
