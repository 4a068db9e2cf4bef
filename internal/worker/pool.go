// ABOUTME: WorkerPool supervises N workers sharing one Store handle, runs the
// ABOUTME: periodic lease reaper and metrics snapshot goroutines, and drains in-flight jobs on shutdown.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxqueue/fluxqueue/internal/admission"
	"github.com/fluxqueue/fluxqueue/internal/eventbus"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

// PoolStore is the subset of store.Store the pool's reaper and metrics
// goroutines depend on, in addition to the per-worker Store interface.
type PoolStore interface {
	Store
	ReclaimExpiredLeases(ctx context.Context) ([]store.Job, error)
	Summarize(ctx context.Context, tenantID string) (store.Summary, error)
	RecordSnapshot(ctx context.Context, tenantID string, sum store.Summary) error
	RunningCountByTenant(ctx context.Context) (map[string]int32, error)
}

// Config controls pool sizing and timing. All fields have spec-mandated
// defaults; see internal/config.
type Config struct {
	NumWorkers              int
	LeaseTTL                time.Duration
	PollInterval            time.Duration
	MetricsSnapshotInterval time.Duration
}

// Pool supervises N identical Workers, a lease reaper, and a metrics
// snapshot goroutine, all sharing one Store, Admission gate, and
// EventBus.
type Pool struct {
	store   PoolStore
	gate    *admission.Gate
	bus     *eventbus.Bus
	cfg     Config
	handler Handler

	mu      sync.RWMutex
	tenants map[string]struct{} // tenants seen so far, for the metrics snapshot sweep
}

// New returns a Pool. handler defaults to SleepHandler(0) — the
// built-in test stub (spec §2: "a test stub that sleeps and returns
// success"); real deployments call SetHandler before Start.
func New(s PoolStore, gate *admission.Gate, bus *eventbus.Bus, cfg Config) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 300 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MetricsSnapshotInterval <= 0 {
		cfg.MetricsSnapshotInterval = 60 * time.Second
	}
	return &Pool{
		store:   s,
		gate:    gate,
		bus:     bus,
		cfg:     cfg,
		handler: SleepHandler(0),
		tenants: make(map[string]struct{}),
	}
}

// SetHandler registers the business-logic handler executed for every
// claimed job. Must be called before Start.
func (p *Pool) SetHandler(h Handler) {
	p.handler = h
}

func (p *Pool) noteTenant(tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants[tenantID] = struct{}{}
}

func (p *Pool) knownTenants() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.tenants))
	for t := range p.tenants {
		out = append(out, t)
	}
	return out
}

// Start rebuilds the admission concurrency cache, then launches N
// workers plus the lease-reaper and metrics-snapshot goroutines, and
// blocks until ctx is cancelled. In-flight jobs are not force-cancelled
// at shutdown: a worker finishing its current job observes ctx on its
// next loop iteration and exits; unfinished leases simply expire and
// are reclaimed by the next pool instance (spec §4.4 cancellation note).
func (p *Pool) Start(ctx context.Context) error {
	if err := p.gate.RebuildConcurrency(ctx, p.store); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.NumWorkers; i++ {
		w := &worker{
			id:           "worker-" + uuid.NewString(),
			store:        p.store,
			gate:         p.gate,
			bus:          p.bus,
			handler:      p.handler,
			onTenantSeen: p.noteTenant,
			leaseTTL:     p.cfg.LeaseTTL,
			pollInterval: p.cfg.PollInterval,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runReaper(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runMetricsSnapshot(ctx)
	}()

	wg.Wait()
	slog.Info("worker pool stopped")
	return nil
}

// runReaper periodically reclaims jobs whose leases expired without a
// terminating ack (crashed worker, network partition). retry_count is
// not incremented on this path (spec §9 Open Question 2).
func (p *Pool) runReaper(ctx context.Context) {
	interval := p.cfg.LeaseTTL / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := p.store.ReclaimExpiredLeases(ctx)
			if err != nil {
				slog.Error("reclaim expired leases failed", "error", err)
				continue
			}
			for _, j := range reclaimed {
				p.noteTenant(j.TenantID)
				p.gate.Release(j.TenantID)
				p.bus.Publish(eventbus.Event{
					Type:     eventbus.JobRetry,
					JobID:    j.ID.String(),
					TenantID: j.TenantID,
					TraceID:  j.TraceID,
				})
			}
			if len(reclaimed) > 0 {
				slog.Info("reclaimed expired leases", "count", len(reclaimed))
			}
		}
	}
}

// runMetricsSnapshot periodically summarizes and records a
// metrics_snapshots row for every tenant the pool has seen so far
// (spec_full.md §4.5 supplement).
func (p *Pool) runMetricsSnapshot(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MetricsSnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tenantID := range p.knownTenants() {
				sum, err := p.store.Summarize(ctx, tenantID)
				if err != nil {
					slog.Error("summarize failed", "tenant_id", tenantID, "error", err)
					continue
				}
				if err := p.store.RecordSnapshot(ctx, tenantID, sum); err != nil {
					slog.Error("record metrics snapshot failed", "tenant_id", tenantID, "error", err)
				}
			}
		}
	}
}
