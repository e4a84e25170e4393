// ABOUTME: Fixed-size pool of warm agent backend sessions with acquire/release.
// ABOUTME: Releasing a handle clears all conversational state before reuse.

package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bassi-ai/bassi/internal/backend"
	"github.com/bassi-ai/bassi/internal/metrics"
)

// ErrPoolExhausted indicates no handle became available within the
// acquire timeout. Callers surface this as a "server busy" condition.
var ErrPoolExhausted = errors.New("agent pool exhausted")

// ErrPoolClosed indicates the pool has been shut down.
var ErrPoolClosed = errors.New("agent pool closed")

// Stats tracks per-chat activity on a handle. Cleared on release.
type Stats struct {
	MessagesSent   int
	EventsStreamed int
}

// Handle is one pre-connected backend session plus the conversational
// state bound to it while a browser holds it. The in-use bookkeeping is
// guarded by the pool mutex; the conversational state by the handle's own
// mutex, since messages on one connection are processed concurrently.
type Handle struct {
	session backend.Session

	// guarded by Pool.mu
	inUse     bool
	browserID string
	useCount  int

	// conversational state, guarded by mu
	mu          sync.Mutex
	history     []backend.Message
	workspaceID string
	stats       Stats
	cache       map[string]string
}

// Session returns the underlying backend session.
func (h *Handle) Session() backend.Session {
	return h.session
}

// Append records one message in the handle's conversation context.
func (h *Handle) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, backend.Message{Role: role, Content: content})
}

// History returns a copy of the handle's conversation context.
func (h *Handle) History() []backend.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]backend.Message, len(h.history))
	copy(out, h.history)
	return out
}

// ReplaceHistory swaps in a replayed conversation, used when resuming or
// switching to a persisted chat.
func (h *Handle) ReplaceHistory(msgs []backend.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = make([]backend.Message, len(msgs))
	copy(h.history, msgs)
}

// BindWorkspace records which chat the handle is currently serving.
func (h *Handle) BindWorkspace(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workspaceID = chatID
}

// WorkspaceID returns the currently bound chat ID, or "".
func (h *Handle) WorkspaceID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.workspaceID
}

// RecordMessage bumps the per-chat message counter.
func (h *Handle) RecordMessage(events int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.MessagesSent++
	h.stats.EventsStreamed += events
}

// Stats returns the per-chat counters.
func (h *Handle) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// CachePut stores a conversation-scoped value on the handle.
func (h *Handle) CachePut(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cache == nil {
		h.cache = make(map[string]string)
	}
	h.cache[key] = value
}

// CacheGet retrieves a conversation-scoped value.
func (h *Handle) CacheGet(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.cache[key]
	return v, ok
}

// clearConversationState wipes everything that could carry one chat's
// content into the next acquirer's session. This is the pool's core
// correctness contract: a release that misses any field here leaks
// context between unrelated chats.
func (h *Handle) clearConversationState() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
	h.workspaceID = ""
	h.stats = Stats{}
	h.cache = nil
}

// Pool is a fixed-size set of pre-connected agent sessions. The size is
// a hard cap: an exhausted pool never creates an extra session.
type Pool struct {
	mu       sync.Mutex
	handles  []*Handle
	released chan struct{}
	closed   bool
	logger   *slog.Logger
}

// New connects size sessions up front and returns the pool. Construct
// one pool at process startup and pass it by reference; there is no
// package-level instance.
func New(ctx context.Context, b backend.Backend, size int, logger *slog.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		handles:  make([]*Handle, 0, size),
		released: make(chan struct{}),
		logger:   logger.With("component", "pool"),
	}

	for i := 0; i < size; i++ {
		sess, err := b.Connect(ctx)
		if err != nil {
			p.shutdownLocked(context.Background())
			return nil, fmt.Errorf("connecting pool session %d: %w", i, err)
		}
		p.handles = append(p.handles, &Handle{session: sess})
	}

	p.logger.Info("pool ready", "size", size)
	return p, nil
}

// Acquire returns the first available handle, binding it to browserID.
// It waits up to timeout for a release before failing with
// ErrPoolExhausted. The wait is bounded; there is no indefinite retry.
func (p *Pool) Acquire(ctx context.Context, browserID string, timeout time.Duration) (*Handle, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		for _, h := range p.handles {
			if !h.inUse {
				h.inUse = true
				h.browserID = browserID
				h.useCount++
				p.mu.Unlock()

				metrics.PoolAcquires.Inc()
				metrics.PoolInUse.Inc()
				p.logger.Debug("handle acquired",
					"browser_id", browserID,
					"use_count", h.useCount)
				return h, nil
			}
		}
		// Snapshot the release signal channel while holding the lock so a
		// release between unlock and select cannot be missed.
		releaseCh := p.released
		p.mu.Unlock()

		select {
		case <-releaseCh:
		case <-timer.C:
			metrics.PoolExhausted.Inc()
			p.logger.Warn("acquire timed out", "browser_id", browserID, "timeout", timeout)
			return nil, fmt.Errorf("%w: no handle available within %s", ErrPoolExhausted, timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release clears the handle's conversational state and returns it to the
// pool, waking one round of waiters.
func (p *Pool) Release(h *Handle) {
	h.clearConversationState()

	p.mu.Lock()
	if !h.inUse {
		p.mu.Unlock()
		return
	}
	browserID := h.browserID
	h.inUse = false
	h.browserID = ""

	// Closing the signal channel wakes every waiter; they race for the
	// freed handle and the losers go back to waiting on the new channel.
	close(p.released)
	p.released = make(chan struct{})
	p.mu.Unlock()

	metrics.PoolInUse.Dec()
	p.logger.Debug("handle released", "browser_id", browserID)
}

// SetModelAll applies a model change to every handle's session and
// returns the number updated. Handles currently in use keep their
// running request's model; the change applies to their next send.
func (p *Pool) SetModelAll(model string) int {
	p.mu.Lock()
	handles := make([]*Handle, len(p.handles))
	copy(handles, p.handles)
	p.mu.Unlock()

	for _, h := range handles {
		h.session.SetModel(model)
	}
	p.logger.Info("model updated on all handles", "model", model, "count", len(handles))
	return len(handles)
}

// Size returns the fixed pool size.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// InUse returns how many handles are currently bound.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, h := range p.handles {
		if h.inUse {
			n++
		}
	}
	return n
}

// Shutdown closes every session. Acquire fails with ErrPoolClosed
// afterwards.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdownLocked(ctx)
}

func (p *Pool) shutdownLocked(ctx context.Context) error {
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.released)
	p.released = make(chan struct{})

	var firstErr error
	for _, h := range p.handles {
		if err := h.session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.logger.Info("pool shut down", "size", len(p.handles))
	return firstErr
}
