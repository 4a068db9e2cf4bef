package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fluxqueue/fluxqueue/internal/admission"
	"github.com/fluxqueue/fluxqueue/internal/eventbus"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

// Store is the subset of store.Store a single Worker depends on.
type Store interface {
	ClaimNextPending(ctx context.Context, workerID string, leaseTTL time.Duration) (*store.Job, error)
	RenewLease(ctx context.Context, id uuid.UUID, workerID string, leaseTTL time.Duration) (bool, error)
	CompleteJob(ctx context.Context, id uuid.UUID, workerID string, result json.RawMessage) error
	FailAndRetry(ctx context.Context, id uuid.UUID, workerID, errMsg string, permanent bool) (store.FailOutcome, error)
}

// worker runs the dequeue/execute/ack loop described in spec §4.4.
type worker struct {
	id           string
	store        Store
	gate         *admission.Gate
	bus          *eventbus.Bus
	handler      Handler
	onTenantSeen func(tenantID string)
	leaseTTL     time.Duration
	pollInterval time.Duration
}

// run loops until ctx is cancelled, claiming and executing one job per
// iteration. Poll discipline: sleep pollInterval when idle; loop
// immediately (no sleep) right after a successful claim.
func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		claimed, err := w.store.ClaimNextPending(ctx, w.id, w.leaseTTL)
		if err != nil {
			slog.Error("claim next pending failed", "worker_id", w.id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}
		if claimed == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}
		w.process(ctx, claimed)
	}
}

// process executes one claimed job to completion: runs the handler
// behind a heartbeat-renewed lease, then acks, retries, or DLQs it.
func (w *worker) process(ctx context.Context, j *store.Job) {
	job := Job{
		ID:         j.ID,
		TenantID:   j.TenantID,
		Payload:    j.Payload,
		RetryCount: j.RetryCount,
		MaxRetries: j.MaxRetries,
		TraceID:    j.TraceID,
	}
	if w.onTenantSeen != nil {
		w.onTenantSeen(job.TenantID)
	}

	w.bus.Publish(eventbus.Event{
		Type:     eventbus.JobStarted,
		JobID:    job.ID.String(),
		TenantID: job.TenantID,
		TraceID:  job.TraceID,
	})

	// Shutdown (cancellation of ctx) does not reach the running job: the
	// handler and the ack below run on a context detached from it.
	jobCtx := context.WithoutCancel(ctx)
	hbCtx, cancel := context.WithCancel(jobCtx)
	defer cancel()

	heartbeat := func(hctx context.Context) bool {
		ok, err := w.store.RenewLease(hctx, job.ID, w.id, w.leaseTTL)
		if err != nil {
			slog.Error("renew lease failed", "worker_id", w.id, "job_id", job.ID, "error", err)
			return true // transient store error: keep trying, don't abandon the job
		}
		if !ok {
			cancel() // lease lost to a reaper; signal the handler to stop
		}
		return ok
	}
	go w.heartbeatLoop(hbCtx, heartbeat)

	result, err := w.handler(hbCtx, job, heartbeat)
	if err == nil {
		if compErr := w.store.CompleteJob(jobCtx, job.ID, w.id, result); compErr != nil {
			if errors.Is(compErr, store.ErrLeaseLost) {
				slog.Warn("complete skipped: lease lost to reaper", "job_id", job.ID)
				return
			}
			slog.Error("complete job failed", "worker_id", w.id, "job_id", job.ID, "error", compErr)
			return
		}
		w.gate.Release(job.TenantID)
		w.bus.Publish(eventbus.Event{
			Type:     eventbus.JobCompleted,
			JobID:    job.ID.String(),
			TenantID: job.TenantID,
			TraceID:  job.TraceID,
		})
		return
	}

	var permFail *PermanentFailure
	permanent := errors.As(err, &permFail)

	outcome, failErr := w.store.FailAndRetry(jobCtx, job.ID, w.id, err.Error(), permanent)
	if failErr != nil {
		if errors.Is(failErr, store.ErrLeaseLost) {
			slog.Warn("fail_and_retry skipped: lease lost to reaper", "job_id", job.ID)
			return
		}
		slog.Error("fail_and_retry failed", "worker_id", w.id, "job_id", job.ID, "error", failErr)
		return
	}

	switch outcome {
	case store.Retried:
		// Admission release is deliberately deferred until the job
		// reaches a terminal state (see DESIGN.md Open Question 1).
		w.bus.Publish(eventbus.Event{
			Type:     eventbus.JobRetry,
			JobID:    job.ID.String(),
			TenantID: job.TenantID,
			TraceID:  job.TraceID,
		})
	case store.DeadLettered:
		w.gate.Release(job.TenantID)
		w.bus.Publish(eventbus.Event{
			Type:     eventbus.JobDLQ,
			JobID:    job.ID.String(),
			TenantID: job.TenantID,
			TraceID:  job.TraceID,
		})
	}
}

// heartbeatLoop renews the job's lease at leaseTTL/3 until ctx is done.
func (w *worker) heartbeatLoop(ctx context.Context, heartbeat Heartbeat) {
	ticker := time.NewTicker(w.leaseTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			heartbeat(ctx)
		}
	}
}
