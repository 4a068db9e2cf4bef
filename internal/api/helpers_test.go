// ABOUTME: Shared test fakes and server construction helper for the api package tests.
package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fluxqueue/fluxqueue/internal/admission"
	"github.com/fluxqueue/fluxqueue/internal/auth"
	"github.com/fluxqueue/fluxqueue/internal/config"
	"github.com/fluxqueue/fluxqueue/internal/eventbus"
	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
	"github.com/fluxqueue/fluxqueue/internal/observer"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

type fakeStore struct {
	tenants map[string]store.Tenant
	jobs    map[string]store.Job
	dlq     []store.DLQEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{tenants: make(map[string]store.Tenant), jobs: make(map[string]store.Job)}
}

func (f *fakeStore) GetTenantByID(_ context.Context, tenantID string) (store.Tenant, error) {
	t, ok := f.tenants[tenantID]
	if !ok {
		return store.Tenant{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) CreateJob(_ context.Context, tenantID string, payload json.RawMessage, idempotencyKey *string, traceID string, maxRetries int32) (store.Job, error) {
	job := store.Job{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Status:         store.StatusPending,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
		TraceID:        traceID,
		MaxRetries:     maxRetries,
		CreatedAt:      time.Now(),
	}
	f.jobs[job.ID.String()] = job
	return job, nil
}

func (f *fakeStore) GetJob(_ context.Context, tenantID string, id uuid.UUID) (store.Job, error) {
	j, ok := f.jobs[id.String()]
	if !ok || j.TenantID != tenantID {
		return store.Job{}, store.ErrNotFound
	}
	return j, nil
}

func (f *fakeStore) ListJobs(_ context.Context, tenantID, _ string, _, _ int32) ([]store.Job, error) {
	var out []store.Job
	for _, j := range f.jobs {
		if j.TenantID == tenantID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDLQ(_ context.Context, tenantID string, _, _ int32) ([]store.DLQEntry, error) {
	var out []store.DLQEntry
	for _, e := range f.dlq {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Summarize(_ context.Context, tenantID string) (store.Summary, error) {
	var sum store.Summary
	for _, j := range f.jobs {
		if j.TenantID != tenantID {
			continue
		}
		sum.Total++
		if j.Status == store.StatusPending {
			sum.Pending++
		}
	}
	return sum, nil
}

// newTestServer builds a Server backed by an in-memory fake store, returning
// the handler and a valid bearer credential for "tenant-a".
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv, token, _ := newTestServerWithBus(t)
	return srv, token
}

// newTestServerWithBus is newTestServer plus the underlying event bus, for
// tests that need to publish events and assert they reach observers.
func newTestServerWithBus(t *testing.T) (*Server, string, *eventbus.Bus) {
	t.Helper()
	st := newFakeStore()
	token, err := auth.GenerateCredential("tenant-a")
	if err != nil {
		t.Fatalf("generate credential: %v", err)
	}
	st.tenants["tenant-a"] = store.Tenant{
		TenantID:           "tenant-a",
		Credential:         token,
		MaxConcurrentJobs:  10,
		RateLimitPerMinute: 600,
	}
	gate := admission.New()
	bus := eventbus.New(16)
	svc := jobqueue.New(st, gate, bus)
	gw := observer.NewGateway(bus)
	t.Cleanup(gw.Close)
	srv := NewServer(svc, gw, &config.Config{}, nil)
	return srv, token, bus
}
