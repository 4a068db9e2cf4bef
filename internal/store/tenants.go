package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	generated "github.com/fluxqueue/fluxqueue/internal/store/generated"
)

// Tenant is the domain view of a tenants row.
type Tenant struct {
	TenantID           string
	Credential         string
	MaxConcurrentJobs  int32
	RateLimitPerMinute int32
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func fromGeneratedTenant(g generated.Tenant) Tenant {
	return Tenant{
		TenantID:           g.TenantID,
		Credential:         g.Credential,
		MaxConcurrentJobs:  g.MaxConcurrentJobs,
		RateLimitPerMinute: g.RateLimitPerMinute,
		CreatedAt:          g.CreatedAt,
		UpdatedAt:          g.UpdatedAt,
	}
}

// GetTenantByID returns the tenant row for id, or ErrNotFound.
func (s *Store) GetTenantByID(ctx context.Context, tenantID string) (Tenant, error) {
	g, err := s.q.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("get tenant %s: %w", tenantID, err)
	}
	return fromGeneratedTenant(g), nil
}

// CreateTenant inserts a new tenant row, used by the admin-provisioning
// path (not exposed over HTTP by this version of the service).
func (s *Store) CreateTenant(ctx context.Context, tenantID, credential string, maxConcurrentJobs, rateLimitPerMinute int32) (Tenant, error) {
	g, err := s.q.CreateTenant(ctx, generated.CreateTenantParams{
		TenantID:           tenantID,
		Credential:         credential,
		MaxConcurrentJobs:  maxConcurrentJobs,
		RateLimitPerMinute: rateLimitPerMinute,
	})
	if err != nil {
		return Tenant{}, fmt.Errorf("create tenant %s: %w", tenantID, err)
	}
	return fromGeneratedTenant(g), nil
}

// RunningCountByTenant reports the current RUNNING job count per tenant.
// Used once at startup to rebuild the in-memory concurrency cache in
// internal/admission (spec §4.2).
func (s *Store) RunningCountByTenant(ctx context.Context) (map[string]int32, error) {
	rows, err := s.q.CountRunningJobsByTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("count running jobs by tenant: %w", err)
	}
	out := make(map[string]int32, len(rows))
	for _, r := range rows {
		out[r.TenantID] = int32(r.Count)
	}
	return out, nil
}
