// ABOUTME: Tests for the OpenAI SSE adapter and the scripted backend.
// ABOUTME: Uses httptest servers to fake the Chat Completions wire format.

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
}

func TestOpenAISendStreamsTextDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	b, err := NewOpenAIBackend("test-key", srv.URL, "gpt-test")
	require.NoError(t, err)

	sess, err := b.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", sess.Model())

	stream, err := sess.Send(context.Background(), "s1", []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var events []*Event
	for evt := range stream {
		events = append(events, evt)
	}

	require.Len(t, events, 3)
	assert.Equal(t, EventText, events[0].Type)
	assert.Equal(t, "Hel", events[0].Text)
	assert.Equal(t, "lo", events[1].Text)
	assert.Equal(t, EventDone, events[2].Type)
	assert.Equal(t, "Hello", events[2].Text)
	assert.True(t, events[2].Done)
}

func TestOpenAISendSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend("test-key", srv.URL, "")
	require.NoError(t, err)
	sess, err := b.Connect(context.Background())
	require.NoError(t, err)

	_, err = sess.Send(context.Background(), "s1", []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIBackend("", "", "")
	assert.Error(t, err)
}

func TestScriptedEchoesLastUserMessage(t *testing.T) {
	b := &ScriptedBackend{}
	sess, err := b.Connect(context.Background())
	require.NoError(t, err)

	stream, err := sess.Send(context.Background(), "s1", []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	})
	require.NoError(t, err)

	var terminal *Event
	for evt := range stream {
		terminal = evt
	}
	require.NotNil(t, terminal)
	assert.Equal(t, EventDone, terminal.Type)
	assert.Equal(t, "second", terminal.Text)
}

func TestScriptedCancellationStopsStream(t *testing.T) {
	b := &ScriptedBackend{Delay: 50 * time.Millisecond}
	sess, err := b.Connect(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := sess.Send(ctx, "s1", []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	cancel()

	var sawError bool
	for evt := range stream {
		if evt.Type == EventError {
			sawError = true
			assert.True(t, evt.Done)
		}
	}
	assert.True(t, sawError)
}
