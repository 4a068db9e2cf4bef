package generated

import (
	"context"

	"github.com/google/uuid"
)

const jobColumns = `id, tenant_id, status, payload, result, error_message, idempotency_key,
	trace_id, retry_count, max_retries, worker_id, lease_expires_at, created_at, started_at, completed_at`

func scanJob(row interface{ Scan(dest ...any) error }) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.TenantID, &j.Status, &j.Payload, &j.Result, &j.ErrorMessage, &j.IdempotencyKey,
		&j.TraceID, &j.RetryCount, &j.MaxRetries, &j.WorkerID, &j.LeaseExpiresAt, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	return j, err
}

const getJobByID = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

// GetJobByID returns the job row with the given id, regardless of tenant.
// Tenant-scoping is enforced by the caller (internal/store.GetJob).
func (q *Queries) GetJobByID(ctx context.Context, id uuid.UUID) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getJobByID, id))
}

const getJobByIdempotencyKey = `SELECT ` + jobColumns + ` FROM jobs WHERE tenant_id = $1 AND idempotency_key = $2`

// GetJobByIdempotencyKeyParams holds the lookup key for an idempotent submit.
type GetJobByIdempotencyKeyParams struct {
	TenantID       string
	IdempotencyKey string
}

// GetJobByIdempotencyKey returns the existing job for (tenant, key), if any.
func (q *Queries) GetJobByIdempotencyKey(ctx context.Context, arg GetJobByIdempotencyKeyParams) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getJobByIdempotencyKey, arg.TenantID, arg.IdempotencyKey))
}

const createJob = `INSERT INTO jobs (tenant_id, status, payload, idempotency_key, trace_id, max_retries)
VALUES ($1, 'PENDING', $2, $3, $4, $5)
RETURNING ` + jobColumns

// CreateJobParams holds the parameters for CreateJob.
type CreateJobParams struct {
	TenantID       string
	Payload        []byte
	IdempotencyKey *string
	TraceID        string
	MaxRetries     int32
}

// CreateJob inserts a new PENDING job row and returns it.
func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, createJob, arg.TenantID, arg.Payload, arg.IdempotencyKey, arg.TraceID, arg.MaxRetries))
}

const listJobs = `SELECT ` + jobColumns + ` FROM jobs
WHERE tenant_id = $1 AND ($2::text = '' OR status = $2)
ORDER BY created_at ASC, id ASC
LIMIT $3 OFFSET $4`

// ListJobsParams holds the filter/pagination parameters for ListJobs.
type ListJobsParams struct {
	TenantID string
	Status   string // empty string means "all statuses"
	Limit    int32
	Offset   int32
}

// ListJobs returns a tenant-scoped, optionally status-filtered page of jobs.
func (q *Queries) ListJobs(ctx context.Context, arg ListJobsParams) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, listJobs, arg.TenantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const summarizeByStatus = `SELECT status, COUNT(*) FROM jobs WHERE tenant_id = $1 GROUP BY status`

// StatusCount is one row of a summarize() scan.
type StatusCount struct {
	Status string
	Count  int64
}

// SummarizeByStatus returns the per-status job count for tenant.
func (q *Queries) SummarizeByStatus(ctx context.Context, tenantID string) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(ctx, summarizeByStatus, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

const insertMetricsSnapshot = `INSERT INTO metrics_snapshots (tenant_id, total, pending, running, completed, failed, dlq)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// InsertMetricsSnapshotParams holds one roll-up row.
type InsertMetricsSnapshotParams struct {
	TenantID  string
	Total     int32
	Pending   int32
	Running   int32
	Completed int32
	Failed    int32
	Dlq       int32
}

// InsertMetricsSnapshot writes one periodic roll-up row (SPEC_FULL.md §3).
func (q *Queries) InsertMetricsSnapshot(ctx context.Context, arg InsertMetricsSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, insertMetricsSnapshot,
		arg.TenantID, arg.Total, arg.Pending, arg.Running, arg.Completed, arg.Failed, arg.Dlq)
	return err
}
