package generated

import (
	"context"
)

const getTenantByID = `SELECT tenant_id, credential, max_concurrent_jobs, rate_limit_per_minute, created_at, updated_at
FROM tenants WHERE tenant_id = $1`

// GetTenantByID returns the tenant row for id.
func (q *Queries) GetTenantByID(ctx context.Context, tenantID string) (Tenant, error) {
	row := q.db.QueryRowContext(ctx, getTenantByID, tenantID)
	var t Tenant
	err := row.Scan(&t.TenantID, &t.Credential, &t.MaxConcurrentJobs, &t.RateLimitPerMinute, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const createTenant = `INSERT INTO tenants (tenant_id, credential, max_concurrent_jobs, rate_limit_per_minute)
VALUES ($1, $2, $3, $4)
RETURNING tenant_id, credential, max_concurrent_jobs, rate_limit_per_minute, created_at, updated_at`

// CreateTenantParams holds the parameters for CreateTenant.
type CreateTenantParams struct {
	TenantID           string
	Credential         string
	MaxConcurrentJobs  int32
	RateLimitPerMinute int32
}

// CreateTenant inserts a new tenant row and returns it.
func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	row := q.db.QueryRowContext(ctx, createTenant, arg.TenantID, arg.Credential, arg.MaxConcurrentJobs, arg.RateLimitPerMinute)
	var t Tenant
	err := row.Scan(&t.TenantID, &t.Credential, &t.MaxConcurrentJobs, &t.RateLimitPerMinute, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const countRunningJobsByTenant = `SELECT tenant_id, COUNT(*) FROM jobs WHERE status = 'RUNNING' GROUP BY tenant_id`

// RunningCount is one row of the startup concurrency-cache rebuild scan.
type RunningCount struct {
	TenantID string
	Count    int64
}

// CountRunningJobsByTenant returns the current RUNNING count per tenant,
// used to rebuild internal/admission's in-memory concurrency cache on
// startup (spec §4.2: "rebuilt on startup from COUNT(RUNNING) GROUP BY tenant").
func (q *Queries) CountRunningJobsByTenant(ctx context.Context) ([]RunningCount, error) {
	rows, err := q.db.QueryContext(ctx, countRunningJobsByTenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunningCount
	for rows.Next() {
		var rc RunningCount
		if err := rows.Scan(&rc.TenantID, &rc.Count); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
