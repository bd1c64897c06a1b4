package engine

import (
	"context"
	"sync"
	"time"
)

type passDirection int

const (
	tabsToBookmarks passDirection = iota
	bookmarksToTabs
)

func (d passDirection) String() string {
	if d == bookmarksToTabs {
		return "bookmarks->tabs"
	}
	return "tabs->bookmarks"
}

// passRequest identifies one reconciliation request. ID is a window
// identifier for the tab-originated direction and a folder identifier for
// the bookmark-originated one; requests are drained through the direction
// they arrived on.
type passRequest struct {
	dir passDirection
	id  string
}

const guardPollInterval = 5 * time.Millisecond

// syncGuard is the Idle/Running state machine serializing reconciliation
// passes. Duplicate deferred requests collapse because pending is a set.
type syncGuard struct {
	mu      sync.Mutex
	running bool
	pending map[passRequest]struct{}
}

func newSyncGuard() *syncGuard {
	return &syncGuard{pending: map[passRequest]struct{}{}}
}

// enter admits the request when the guard is idle. Otherwise the request is
// recorded for a later drain and the caller must return without mutating
// anything.
func (g *syncGuard) enter(req passRequest) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.pending[req] = struct{}{}
		return false
	}
	g.running = true
	return true
}

// acquire blocks until the guard is idle, then holds it. Used by user
// operations that mutate both views (window materialization) so that
// notifications produced mid-operation are deferred, not interleaved.
func (g *syncGuard) acquire(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.running {
			g.running = true
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(guardPollInterval):
		}
	}
}

// exit releases the guard and pops at most one deferred request. Remaining
// requests wait for the next full pass; each pass re-derives full state, so
// a stale entry is merely delayed, never wrong.
func (g *syncGuard) exit() (passRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	for req := range g.pending {
		delete(g.pending, req)
		return req, true
	}
	return passRequest{}, false
}

func (g *syncGuard) status() (running bool, pending int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running, len(g.pending)
}
