// ABOUTME: Per-connection tool permission grants with TTL expiry.
// ABOUTME: Grants never outlive the browser session that made them.

package interact

import (
	"sync"
	"time"
)

// grant records one approved tool for one browser session.
type grant struct {
	grantedAt time.Time
}

// Grants tracks which tools a browser session has approved. Grants are
// scoped to the session and expire after a TTL, so an approval can never
// outlive either the connection or its freshness window.
type Grants struct {
	mu    sync.RWMutex
	ttl   time.Duration
	byKey map[string]map[string]*grant // browserID -> tool -> grant
}

// NewGrants creates a grant store. A zero ttl means grants last for the
// whole session.
func NewGrants(ttl time.Duration) *Grants {
	return &Grants{
		ttl:   ttl,
		byKey: make(map[string]map[string]*grant),
	}
}

// Grant records that a browser approved a tool.
func (g *Grants) Grant(browserID, tool string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tools, ok := g.byKey[browserID]
	if !ok {
		tools = make(map[string]*grant)
		g.byKey[browserID] = tools
	}
	tools[tool] = &grant{grantedAt: time.Now()}
}

// Allowed reports whether a browser holds a live grant for a tool.
// Expired grants are pruned on read.
func (g *Grants) Allowed(browserID, tool string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	tools, ok := g.byKey[browserID]
	if !ok {
		return false
	}
	gr, ok := tools[tool]
	if !ok {
		return false
	}
	if g.ttl > 0 && time.Since(gr.grantedAt) >= g.ttl {
		delete(tools, tool)
		return false
	}
	return true
}

// ClearSession drops every grant held by a browser. Called from
// connection cleanup.
func (g *Grants) ClearSession(browserID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.byKey, browserID)
}

// SessionGrantCount returns how many live grants a browser holds.
func (g *Grants) SessionGrantCount(browserID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byKey[browserID])
}
