// ABOUTME: JobService: authentication lookup, admission checks, idempotency
// ABOUTME: resolution, persistence, and event publication for the submission and query API.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fluxqueue/fluxqueue/internal/admission"
	"github.com/fluxqueue/fluxqueue/internal/auth"
	"github.com/fluxqueue/fluxqueue/internal/eventbus"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

// DefaultMaxRetries is used when a submission omits max_retries.
const DefaultMaxRetries = 3

// Store is the subset of store.Store the service depends on.
type Store interface {
	GetTenantByID(ctx context.Context, tenantID string) (store.Tenant, error)
	CreateJob(ctx context.Context, tenantID string, payload json.RawMessage, idempotencyKey *string, traceID string, maxRetries int32) (store.Job, error)
	GetJob(ctx context.Context, tenantID string, id uuid.UUID) (store.Job, error)
	ListJobs(ctx context.Context, tenantID, status string, limit, offset int32) ([]store.Job, error)
	ListDLQ(ctx context.Context, tenantID string, limit, offset int32) ([]store.DLQEntry, error)
	Summarize(ctx context.Context, tenantID string) (store.Summary, error)
}

// SubmitRequest is the validated input to Submit.
type SubmitRequest struct {
	Payload        json.RawMessage
	IdempotencyKey *string
	MaxRetries     *int32
}

// Service implements the submission and query API (spec §5): resolve
// tenant by credential, apply admission control, persist, and publish
// the submission event.
type Service struct {
	store Store
	gate  *admission.Gate
	bus   *eventbus.Bus
}

// New returns a Service.
func New(st Store, gate *admission.Gate, bus *eventbus.Bus) *Service {
	return &Service{store: st, gate: gate, bus: bus}
}

// Authenticate resolves credential to a tenant, returning ErrUnauthorized
// on any mismatch (unknown tenant id or wrong secret). Exported so the
// HTTP layer can authenticate once per connection (the websocket gateway
// has no per-message request to hang a credential off of).
func (s *Service) Authenticate(ctx context.Context, credential string) (store.Tenant, error) {
	tenantID, secret, ok := auth.ParseCredential(credential)
	if !ok {
		return store.Tenant{}, ErrUnauthorized
	}
	tenant, err := s.store.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Tenant{}, ErrUnauthorized
		}
		return store.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
	}
	if !auth.Verify(tenant.Credential, secret) {
		return store.Tenant{}, ErrUnauthorized
	}
	return tenant, nil
}

// Submit resolves the tenant, applies rate-limit and concurrency
// admission checks, persists a new PENDING job (or returns the existing
// job on an idempotent replay), and publishes JOB_SUBMITTED exactly
// once per distinct (tenant, idempotency_key).
func (s *Service) Submit(ctx context.Context, credential string, req SubmitRequest) (store.Job, error) {
	tenant, err := s.Authenticate(ctx, credential)
	if err != nil {
		return store.Job{}, err
	}

	if len(req.Payload) == 0 {
		return store.Job{}, fmt.Errorf("%w: payload is required", ErrValidation)
	}
	maxRetries := int32(DefaultMaxRetries)
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return store.Job{}, fmt.Errorf("%w: max_retries must be non-negative", ErrValidation)
		}
		maxRetries = *req.MaxRetries
	}

	if !s.gate.AllowRate(tenant.TenantID, tenant.RateLimitPerMinute) {
		return store.Job{}, ErrRateLimited
	}
	if !s.gate.TryReserve(tenant.TenantID, tenant.MaxConcurrentJobs) {
		return store.Job{}, ErrConcurrencyExceeded
	}

	traceID := uuid.NewString()
	job, err := s.store.CreateJob(ctx, tenant.TenantID, req.Payload, req.IdempotencyKey, traceID, maxRetries)
	if err != nil {
		if errors.Is(err, store.ErrIdempotentReplay) {
			// A job already exists for this (tenant, key): no new
			// reservation was actually consumed, and no duplicate
			// JOB_SUBMITTED is emitted (spec §8: "exactly one
			// JOB_SUBMITTED event is emitted").
			s.gate.Release(tenant.TenantID)
			return job, nil
		}
		s.gate.Release(tenant.TenantID)
		return store.Job{}, fmt.Errorf("create job: %w", err)
	}

	s.bus.Publish(eventbus.Event{
		Type:     eventbus.JobSubmitted,
		JobID:    job.ID.String(),
		TenantID: job.TenantID,
		TraceID:  job.TraceID,
	})
	return job, nil
}

// Get returns a job by id, scoped to the authenticated tenant.
func (s *Service) Get(ctx context.Context, credential string, id uuid.UUID) (store.Job, error) {
	tenant, err := s.Authenticate(ctx, credential)
	if err != nil {
		return store.Job{}, err
	}
	job, err := s.store.GetJob(ctx, tenant.TenantID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Job{}, ErrNotFound
		}
		return store.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns a tenant-scoped, optionally status-filtered page of jobs.
func (s *Service) List(ctx context.Context, credential, status string, limit, offset int32) ([]store.Job, error) {
	tenant, err := s.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListJobs(ctx, tenant.TenantID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// DLQList returns a tenant-scoped page of dead-lettered jobs.
func (s *Service) DLQList(ctx context.Context, credential string, limit, offset int32) ([]store.DLQEntry, error) {
	tenant, err := s.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListDLQ(ctx, tenant.TenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list dlq entries: %w", err)
	}
	return entries, nil
}

// Metrics returns the live per-status job count for the tenant.
func (s *Service) Metrics(ctx context.Context, credential string) (store.Summary, error) {
	tenant, err := s.Authenticate(ctx, credential)
	if err != nil {
		return store.Summary{}, err
	}
	sum, err := s.store.Summarize(ctx, tenant.TenantID)
	if err != nil {
		return store.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return sum, nil
}
