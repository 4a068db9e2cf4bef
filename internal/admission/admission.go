// ABOUTME: Per-tenant admission control: token-bucket rate limiting plus
// ABOUTME: a concurrency cap, both process-local and rebuilt from the store on startup.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RunningCounter is the subset of store.Store the concurrency cache needs
// to rebuild itself at startup.
type RunningCounter interface {
	RunningCountByTenant(ctx context.Context) (map[string]int32, error)
}

// evictTTL is how long an idle tenant's rate limiter stays cached before
// its bucket is dropped; the next request simply rebuilds it.
const evictTTL = 30 * time.Minute

// Gate is per-tenant admission control: a token-bucket rate limiter and a
// compare-and-increment concurrency counter. Both are process-local —
// each fluxqueue instance keeps its own full bucket and counter per
// tenant, so running multiple instances multiplies a tenant's effective
// limit (see DESIGN.md Open Question 4).
type Gate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	running  map[string]int32
}

// New returns an empty Gate. Call RebuildConcurrency once at startup
// before accepting submissions, so the counter reflects jobs already
// RUNNING from a prior process.
func New() *Gate {
	g := &Gate{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		running:  make(map[string]int32),
	}
	go g.cleanupLoop()
	return g
}

// RebuildConcurrency seeds the running-job counter from the store (spec
// §4.3: "implementations may ... maintain an in-memory cache that is
// rebuilt on startup from COUNT(RUNNING) GROUP BY tenant").
func (g *Gate) RebuildConcurrency(ctx context.Context, counter RunningCounter) error {
	counts, err := counter.RunningCountByTenant(ctx)
	if err != nil {
		return fmt.Errorf("rebuild concurrency cache: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for tenantID, n := range counts {
		g.running[tenantID] = n
	}
	return nil
}

// AllowRate reports whether tenantID is within its per-minute rate
// limit, lazily creating its bucket on first use.
func (g *Gate) AllowRate(tenantID string, ratePerMinute int32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), int(ratePerMinute))
		g.limiters[tenantID] = l
	}
	g.lastSeen[tenantID] = time.Now()
	return l.Allow()
}

// TryReserve compare-and-increments tenantID's running count if it is
// below max. Returns false (no reservation made) if max is already
// reached.
func (g *Gate) TryReserve(tenantID string, max int32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[tenantID] >= max {
		return false
	}
	g.running[tenantID]++
	return true
}

// Release decrements tenantID's running count on any terminal
// transition (COMPLETED, FAILED, DLQ) or lease reclaim. Per spec §9
// Open Question 1, RETRY is deliberately NOT a terminal transition for
// admission counting — the job remains outstanding for that tenant
// until it reaches a terminal state or its lease is reclaimed.
func (g *Gate) Release(tenantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[tenantID] > 0 {
		g.running[tenantID]--
	}
}

// Running reports the current in-flight job count for tenantID, for
// diagnostics and tests.
func (g *Gate) Running(tenantID string) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[tenantID]
}

func (g *Gate) cleanupLoop() {
	ticker := time.NewTicker(evictTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		g.mu.Lock()
		cutoff := time.Now().Add(-evictTTL)
		for tenantID, last := range g.lastSeen {
			if last.Before(cutoff) {
				delete(g.limiters, tenantID)
				delete(g.lastSeen, tenantID)
			}
		}
		g.mu.Unlock()
	}
}
