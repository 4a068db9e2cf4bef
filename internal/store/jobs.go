package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	generated "github.com/fluxqueue/fluxqueue/internal/store/generated"
)

// Job is the domain view of a jobs row: nullable lease/result/terminal
// fields are surfaced as Go pointers instead of sql.Null*, so callers
// above this package never import database/sql.
type Job struct {
	ID             uuid.UUID
	TenantID       string
	Status         string
	Payload        json.RawMessage
	Result         json.RawMessage
	ErrorMessage   *string
	IdempotencyKey *string
	TraceID        string
	RetryCount     int32
	MaxRetries     int32
	WorkerID       *string
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusDLQ       = "DLQ"
)

func fromGeneratedJob(g generated.Job) Job {
	j := Job{
		ID:         g.ID,
		TenantID:   g.TenantID,
		Status:     g.Status,
		Payload:    g.Payload,
		Result:     g.Result,
		TraceID:    g.TraceID,
		RetryCount: g.RetryCount,
		MaxRetries: g.MaxRetries,
		CreatedAt:  g.CreatedAt,
	}
	if g.ErrorMessage.Valid {
		j.ErrorMessage = &g.ErrorMessage.String
	}
	if g.IdempotencyKey.Valid {
		j.IdempotencyKey = &g.IdempotencyKey.String
	}
	if g.WorkerID.Valid {
		j.WorkerID = &g.WorkerID.String
	}
	if g.LeaseExpiresAt.Valid {
		j.LeaseExpiresAt = &g.LeaseExpiresAt.Time
	}
	if g.StartedAt.Valid {
		j.StartedAt = &g.StartedAt.Time
	}
	if g.CompletedAt.Valid {
		j.CompletedAt = &g.CompletedAt.Time
	}
	return j
}

// CreateJob inserts a new PENDING job. If idempotencyKey is non-nil and a
// job already exists for (tenantID, *idempotencyKey), the existing job is
// returned alongside ErrIdempotentReplay so the caller can short-circuit
// event emission (spec: "exactly one JOB_SUBMITTED event is emitted").
//
// The check-then-insert runs inside one transaction via withTx, so a
// reader never observes the insert without the idempotency key that
// guards it.
func (s *Store) CreateJob(ctx context.Context, tenantID string, payload json.RawMessage, idempotencyKey *string, traceID string, maxRetries int32) (Job, error) {
	var job Job
	txErr := s.withTx(ctx, func(q *generated.Queries) error {
		if idempotencyKey != nil {
			existing, err := q.GetJobByIdempotencyKey(ctx, generated.GetJobByIdempotencyKeyParams{
				TenantID:       tenantID,
				IdempotencyKey: *idempotencyKey,
			})
			if err == nil {
				job = fromGeneratedJob(existing)
				return ErrIdempotentReplay
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("check idempotency key: %w", err)
			}
		}

		g, err := q.CreateJob(ctx, generated.CreateJobParams{
			TenantID:       tenantID,
			Payload:        payload,
			IdempotencyKey: idempotencyKey,
			TraceID:        traceID,
			MaxRetries:     maxRetries,
		})
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		job = fromGeneratedJob(g)
		return nil
	})

	switch {
	case txErr == nil:
		return job, nil
	case errors.Is(txErr, ErrIdempotentReplay):
		return job, ErrIdempotentReplay
	}

	// A concurrent submitter may have raced us past the idempotency check
	// inside the transaction above; the unique partial index is the real
	// guarantee. The failed transaction already rolled back, so this
	// lookup runs as its own statement rather than inside an aborted one.
	if idempotencyKey != nil {
		if existing, lookupErr := s.q.GetJobByIdempotencyKey(ctx, generated.GetJobByIdempotencyKeyParams{
			TenantID:       tenantID,
			IdempotencyKey: *idempotencyKey,
		}); lookupErr == nil {
			return fromGeneratedJob(existing), ErrIdempotentReplay
		}
	}
	return Job{}, txErr
}

// GetJob returns the job with the given id, scoped to tenantID.
func (s *Store) GetJob(ctx context.Context, tenantID string, id uuid.UUID) (Job, error) {
	g, err := s.q.GetJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	if g.TenantID != tenantID {
		return Job{}, ErrNotFound
	}
	return fromGeneratedJob(g), nil
}

// ListJobs returns a tenant-scoped, optionally status-filtered page of
// jobs ordered oldest-first.
func (s *Store) ListJobs(ctx context.Context, tenantID, status string, limit, offset int32) ([]Job, error) {
	rows, err := s.q.ListJobs(ctx, generated.ListJobsParams{
		TenantID: tenantID,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]Job, len(rows))
	for i, g := range rows {
		out[i] = fromGeneratedJob(g)
	}
	return out, nil
}

const jobColumnsPGX = `id, tenant_id, status, payload, result, error_message, idempotency_key,
	trace_id, retry_count, max_retries, worker_id, lease_expires_at, created_at, started_at, completed_at`

func scanJobRow(row pgx.Row) (Job, error) {
	var g generated.Job
	err := row.Scan(
		&g.ID, &g.TenantID, &g.Status, &g.Payload, &g.Result, &g.ErrorMessage, &g.IdempotencyKey,
		&g.TraceID, &g.RetryCount, &g.MaxRetries, &g.WorkerID, &g.LeaseExpiresAt, &g.CreatedAt, &g.StartedAt, &g.CompletedAt,
	)
	if err != nil {
		return Job{}, err
	}
	return fromGeneratedJob(g), nil
}

// ClaimNextPending atomically claims the oldest PENDING job (FIFO by
// created_at, tie-broken by id) using a SELECT ... FOR UPDATE SKIP LOCKED
// subquery folded into a single UPDATE statement, so the lock and the
// status flip are one round-trip: no other transaction can observe the
// row in between. Returns (nil, nil) when no job is currently available.
func (s *Store) ClaimNextPending(ctx context.Context, workerID string, leaseTTL time.Duration) (*Job, error) {
	var claimed *Job
	err := s.pgxTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `WITH next_job AS (
			SELECT id FROM jobs
			WHERE status = 'PENDING'
			ORDER BY created_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs SET status = 'RUNNING', worker_id = $1, started_at = now(), lease_expires_at = $2
		WHERE id IN (SELECT id FROM next_job)
		RETURNING `+jobColumnsPGX, workerID, time.Now().Add(leaseTTL))

		j, err := scanJobRow(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("claim next pending: %w", err)
		}
		claimed = &j
		return nil
	})
	return claimed, err
}

// RenewLease extends lease_expires_at for a job still RUNNING and still
// owned by workerID. Returns false if the job is no longer owned by
// workerID (a reaper already reclaimed it) — the caller must signal its
// handler to cancel.
func (s *Store) RenewLease(ctx context.Context, id uuid.UUID, workerID string, leaseTTL time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET lease_expires_at = $3
		WHERE id = $1 AND worker_id = $2 AND status = 'RUNNING'`,
		id, workerID, time.Now().Add(leaseTTL))
	if err != nil {
		return false, fmt.Errorf("renew lease %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteJob marks a job COMPLETED, owner-guarded by workerID. Returns
// ErrLeaseLost if the job is no longer RUNNING under that worker.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, workerID string, result json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET status = 'COMPLETED', result = $3, completed_at = now(),
		worker_id = NULL, lease_expires_at = NULL
		WHERE id = $1 AND worker_id = $2 AND status = 'RUNNING'`,
		id, workerID, result)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrLeaseLost
	}
	return nil
}

// FailOutcome reports whether a failed attempt was returned to the retry
// ladder or promoted to the dead-letter queue.
type FailOutcome int

const (
	Retried FailOutcome = iota
	DeadLettered
)

// FailAndRetry is the owner-guarded failure path (spec §4.2
// fail_and_retry). If retry_count < max_retries it increments
// retry_count and returns the job to PENDING, clearing lease fields so
// it is immediately eligible for another worker. Otherwise it promotes
// the job to DLQ and writes an immutable DlqEntry copy-forward in the
// same transaction. permanent forces DLQ promotion regardless of
// retry_count, for handlers that returned a PermanentFailure.
func (s *Store) FailAndRetry(ctx context.Context, id uuid.UUID, workerID, errMsg string, permanent bool) (FailOutcome, error) {
	var outcome FailOutcome
	err := s.pgxTx(ctx, func(tx pgx.Tx) error {
		var retryCount, maxRetries int32
		var tenantID string
		var payload json.RawMessage
		var createdAt time.Time
		err := tx.QueryRow(ctx, `SELECT retry_count, max_retries, tenant_id, payload, created_at FROM jobs
			WHERE id = $1 AND worker_id = $2 AND status = 'RUNNING' FOR UPDATE`,
			id, workerID).Scan(&retryCount, &maxRetries, &tenantID, &payload, &createdAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLeaseLost
			}
			return fmt.Errorf("lock job for failure %s: %w", id, err)
		}

		if !permanent && retryCount < maxRetries {
			outcome = Retried
			_, err := tx.Exec(ctx, `UPDATE jobs SET status = 'PENDING', retry_count = retry_count + 1,
				error_message = $2, worker_id = NULL, lease_expires_at = NULL, started_at = NULL
				WHERE id = $1`, id, errMsg)
			if err != nil {
				return fmt.Errorf("retry job %s: %w", id, err)
			}
			return nil
		}

		outcome = DeadLettered
		if _, err := tx.Exec(ctx, `UPDATE jobs SET status = 'DLQ', error_message = $2, completed_at = now(),
			worker_id = NULL, lease_expires_at = NULL WHERE id = $1`, id, errMsg); err != nil {
			return fmt.Errorf("dlq job %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO dlq_entries (job_id, tenant_id, payload, error_message, original_created_at)
			VALUES ($1, $2, $3, $4, $5)`, id, tenantID, payload, errMsg, createdAt); err != nil {
			return fmt.Errorf("insert dlq entry %s: %w", id, err)
		}
		return nil
	})
	return outcome, err
}

// ReclaimExpiredLeases atomically returns every RUNNING job whose lease
// has expired back to PENDING, clearing lease fields. retry_count is
// deliberately not incremented here (see DESIGN.md Open Question 2):
// a job whose worker crashed mid-execution is not the job's fault.
// Returns the reclaimed jobs so the caller can emit JOB_RETRY events.
func (s *Store) ReclaimExpiredLeases(ctx context.Context) ([]Job, error) {
	var reclaimed []Job
	err := s.pgxTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `UPDATE jobs SET status = 'PENDING', worker_id = NULL,
			lease_expires_at = NULL, started_at = NULL
			WHERE status = 'RUNNING' AND lease_expires_at < now()
			RETURNING `+jobColumnsPGX)
		if err != nil {
			return fmt.Errorf("reclaim expired leases: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			j, err := scanJobRow(rows)
			if err != nil {
				return fmt.Errorf("scan reclaimed job: %w", err)
			}
			reclaimed = append(reclaimed, j)
		}
		return rows.Err()
	})
	return reclaimed, err
}
