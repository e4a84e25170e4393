// ABOUTME: Tests for pool acquire/release semantics and the clearing contract.
// ABOUTME: Covers the hard cap, exhaustion timeout, and no-leakage property.

package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassi-ai/bassi/internal/backend"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := New(context.Background(), &backend.ScriptedBackend{}, size, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p
}

func TestNewConnectsAllSessionsUpFront(t *testing.T) {
	b := &backend.ScriptedBackend{}
	p, err := New(context.Background(), b, 3, nil)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.Equal(t, 3, p.Size())
	assert.Equal(t, 3, b.Connects())
	assert.Equal(t, 0, p.InUse())
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := New(context.Background(), &backend.ScriptedBackend{}, 0, nil)
	assert.Error(t, err)
}

func TestNewFailsWhenBackendUnreachable(t *testing.T) {
	b := &backend.ScriptedBackend{ConnectErr: backend.ErrBackendUnavailable}
	_, err := New(context.Background(), b, 2, nil)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
}

func TestAcquireBindsBrowserAndCountsUse(t *testing.T) {
	p := newTestPool(t, 1)

	h, err := p.Acquire(context.Background(), "browser-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, p.InUse())

	p.Release(h)
	assert.Equal(t, 0, p.InUse())

	h2, err := p.Acquire(context.Background(), "browser-2", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, h2.useCount, "sole handle should have been used twice")
	p.Release(h2)
}

// No leakage: a freshly acquired handle observes empty history, no
// workspace reference, zero stats, and an empty cache regardless of what
// the previous holder wrote.
func TestReleaseClearsAllConversationalState(t *testing.T) {
	p := newTestPool(t, 1)

	h, err := p.Acquire(context.Background(), "browser-a", time.Second)
	require.NoError(t, err)

	h.Append("user", "secret question")
	h.Append("assistant", "secret answer")
	h.BindWorkspace("chat-a")
	h.RecordMessage(5)
	h.CachePut("title", "Secret plans")

	p.Release(h)

	h2, err := p.Acquire(context.Background(), "browser-b", time.Second)
	require.NoError(t, err)
	assert.Same(t, h, h2, "pool of one must hand back the same handle")

	assert.Empty(t, h2.History())
	assert.Equal(t, "", h2.WorkspaceID())
	assert.Equal(t, Stats{}, h2.Stats())
	_, ok := h2.CacheGet("title")
	assert.False(t, ok)
	p.Release(h2)
}

// Pool cap: with every handle held, another acquire with a short timeout
// fails with ErrPoolExhausted near the timeout, without creating an
// extra handle.
func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	p := newTestPool(t, 1)

	h, err := p.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(context.Background(), "waiter", 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Less(t, elapsed, 500*time.Millisecond, "exhausted acquire must not hang")
	assert.Equal(t, 1, p.Size(), "pool must never grow")

	p.Release(h)
}

func TestAcquireUnblocksOnRelease(t *testing.T) {
	p := newTestPool(t, 1)

	h, err := p.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)

	got := make(chan *Handle, 1)
	errs := make(chan error, 1)
	go func() {
		h2, err := p.Acquire(context.Background(), "waiter", 2*time.Second)
		if err != nil {
			errs <- err
			return
		}
		got <- h2
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(h)

	select {
	case h2 := <-got:
		p.Release(h2)
	case err := <-errs:
		t.Fatalf("waiter failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up after release")
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	p := newTestPool(t, 1)

	h, err := p.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)
	defer p.Release(h)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = p.Acquire(ctx, "waiter", 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetModelAllUpdatesEveryHandle(t *testing.T) {
	p := newTestPool(t, 3)

	// One handle in use: the change still reaches its session config.
	h, err := p.Acquire(context.Background(), "browser", time.Second)
	require.NoError(t, err)

	count := p.SetModelAll("scripted-2")
	assert.Equal(t, 3, count)

	assert.Equal(t, "scripted-2", h.Session().Model())
	p.Release(h)

	for i := 0; i < 3; i++ {
		h, err := p.Acquire(context.Background(), "b", time.Second)
		require.NoError(t, err)
		assert.Equal(t, "scripted-2", h.Session().Model())
		defer p.Release(h)
	}
}

func TestDoubleReleaseIsHarmless(t *testing.T) {
	p := newTestPool(t, 1)

	h, err := p.Acquire(context.Background(), "browser", time.Second)
	require.NoError(t, err)

	p.Release(h)
	p.Release(h)
	assert.Equal(t, 0, p.InUse())
}

func TestAcquireAfterShutdownFails(t *testing.T) {
	p := newTestPool(t, 1)
	require.NoError(t, p.Shutdown(context.Background()))

	_, err := p.Acquire(context.Background(), "browser", time.Second)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// Hammer acquire/release from many goroutines: the in-use count must
// never exceed the pool size and every waiter must eventually succeed.
func TestConcurrentAcquireReleaseRespectsCap(t *testing.T) {
	const size = 3
	const workers = 12
	p := newTestPool(t, size)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h, err := p.Acquire(context.Background(), "w", 5*time.Second)
				if !assert.NoError(t, err) {
					return
				}
				assert.LessOrEqual(t, p.InUse(), size)
				h.Append("user", "x")
				time.Sleep(time.Millisecond)
				p.Release(h)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, p.InUse())
}
