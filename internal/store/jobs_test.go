// ABOUTME: Integration tests for the job claim/complete/retry/DLQ state machine.
// ABOUTME: Uses testutil.NewTestDB which starts a real Postgres container with migrations.
package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fluxqueue/fluxqueue/internal/store"
	"github.com/fluxqueue/fluxqueue/internal/testutil"
)

func mustCreateTenant(t *testing.T, s *store.Store, tenantID string) store.Tenant {
	t.Helper()
	tenant, err := s.CreateTenant(context.Background(), tenantID, tenantID+":secret", 10, 600)
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	return tenant
}

func TestCreateJob_IdempotentReplayReturnsExistingJob(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	key := "order-123"
	first, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{"x":1}`), &key, "trace-1", 3)
	if err != nil {
		t.Fatalf("CreateJob (first): %v", err)
	}

	second, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{"x":2}`), &key, "trace-2", 3)
	if err != store.ErrIdempotentReplay {
		t.Fatalf("CreateJob (second) err = %v, want ErrIdempotentReplay", err)
	}
	if second.ID != first.ID {
		t.Errorf("second.ID = %v, want %v (same job)", second.ID, first.ID)
	}

	jobs, err := s.ListJobs(ctx, "tenant-a", "", 10, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1 (no duplicate row for repeated idempotency key)", len(jobs))
	}
}

func TestCreateJob_DistinctIdempotencyKeysCreateDistinctJobs(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	k1, k2 := "k1", "k2"
	j1, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), &k1, "t1", 3)
	if err != nil {
		t.Fatalf("CreateJob k1: %v", err)
	}
	j2, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), &k2, "t2", 3)
	if err != nil {
		t.Fatalf("CreateJob k2: %v", err)
	}
	if j1.ID == j2.ID {
		t.Fatal("distinct idempotency keys produced the same job id")
	}
}

func TestClaimNextPending_FIFOOrderAndEmptyQueue(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	first, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{"n":1}`), nil, "t1", 3)
	if err != nil {
		t.Fatalf("CreateJob 1: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // ensure a distinct created_at ordering
	second, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{"n":2}`), nil, "t2", 3)
	if err != nil {
		t.Fatalf("CreateJob 2: %v", err)
	}

	claimed, err := s.ClaimNextPending(ctx, "worker-1", time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claimed = %+v, want the oldest job %v", claimed, first.ID)
	}
	if claimed.Status != store.StatusRunning || claimed.WorkerID == nil || *claimed.WorkerID != "worker-1" {
		t.Errorf("claimed job not marked RUNNING/owned: %+v", claimed)
	}

	claimed2, err := s.ClaimNextPending(ctx, "worker-2", time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextPending second: %v", err)
	}
	if claimed2 == nil || claimed2.ID != second.ID {
		t.Fatalf("second claim = %+v, want %v", claimed2, second.ID)
	}

	empty, err := s.ClaimNextPending(ctx, "worker-3", time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextPending on empty queue: %v", err)
	}
	if empty != nil {
		t.Errorf("expected nil on empty queue, got %+v", empty)
	}
}

func TestClaimNextPending_AtMostOneWinnerUnderConcurrency(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	job, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t1", 3)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*store.Job, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := s.ClaimNextPending(ctx, workerID(i), time.Minute)
			if err != nil {
				t.Errorf("ClaimNextPending[%d]: %v", i, err)
				return
			}
			results[i] = claimed
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r != nil {
			winners++
			if r.ID != job.ID {
				t.Errorf("unexpected job claimed: %v", r.ID)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1 (at-most-one claim law)", winners)
	}
}

func workerID(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "worker-" + string(letters[i%len(letters)])
}

func TestCompleteJob_OwnerGuardRejectsStaleWorker(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	job, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t1", 3)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	claimed, err := s.ClaimNextPending(ctx, "worker-1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending: %v, %+v", err, claimed)
	}

	if err := s.CompleteJob(ctx, job.ID, "worker-impostor", json.RawMessage(`{"ok":true}`)); err != store.ErrLeaseLost {
		t.Fatalf("CompleteJob by non-owner err = %v, want ErrLeaseLost", err)
	}

	if err := s.CompleteJob(ctx, job.ID, "worker-1", json.RawMessage(`{"ok":true}`)); err != nil {
		t.Fatalf("CompleteJob by owner: %v", err)
	}

	got, err := s.GetJob(ctx, "tenant-a", job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", got.Status)
	}
	if got.WorkerID != nil || got.LeaseExpiresAt != nil {
		t.Errorf("lease fields not cleared after completion: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestFailAndRetry_RetryLadderThenDLQ(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	job, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t1", 2)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := s.ClaimNextPending(ctx, "worker-1", time.Minute)
		if err != nil || claimed == nil {
			t.Fatalf("ClaimNextPending attempt %d: %v, %+v", attempt, err, claimed)
		}
		outcome, err := s.FailAndRetry(ctx, job.ID, "worker-1", "boom", false)
		if err != nil {
			t.Fatalf("FailAndRetry attempt %d: %v", attempt, err)
		}
		if outcome != store.Retried {
			t.Fatalf("attempt %d outcome = %v, want Retried", attempt, outcome)
		}
	}

	// Third attempt: retry_count (2) now equals max_retries (2) -> DLQ.
	claimed, err := s.ClaimNextPending(ctx, "worker-1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending final: %v, %+v", err, claimed)
	}
	outcome, err := s.FailAndRetry(ctx, job.ID, "worker-1", "still broken", false)
	if err != nil {
		t.Fatalf("FailAndRetry final: %v", err)
	}
	if outcome != store.DeadLettered {
		t.Fatalf("final outcome = %v, want DeadLettered", outcome)
	}

	got, err := s.GetJob(ctx, "tenant-a", job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != store.StatusDLQ {
		t.Errorf("Status = %q, want DLQ", got.Status)
	}
	if got.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2 (== max_retries)", got.RetryCount)
	}

	entries, err := s.ListDLQ(ctx, "tenant-a", 10, 0)
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != job.ID {
		t.Fatalf("ListDLQ = %+v, want exactly one entry for %v", entries, job.ID)
	}
}

func TestFailAndRetry_PermanentFailureBypassesLadder(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	job, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t1", 5)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.ClaimNextPending(ctx, "worker-1", time.Minute); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}

	outcome, err := s.FailAndRetry(ctx, job.ID, "worker-1", "permanent error", true)
	if err != nil {
		t.Fatalf("FailAndRetry: %v", err)
	}
	if outcome != store.DeadLettered {
		t.Fatalf("outcome = %v, want DeadLettered even though retry_count(0) < max_retries(5)", outcome)
	}
}

func TestReclaimExpiredLeases_ReturnsJobToPendingWithoutIncrementingRetryCount(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	job, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t1", 3)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.ClaimNextPending(ctx, "worker-1", 10*time.Millisecond); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	time.Sleep(25 * time.Millisecond) // let the lease expire

	reclaimed, err := s.ReclaimExpiredLeases(ctx)
	if err != nil {
		t.Fatalf("ReclaimExpiredLeases: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != job.ID {
		t.Fatalf("reclaimed = %+v, want exactly job %v", reclaimed, job.ID)
	}

	got, err := s.GetJob(ctx, "tenant-a", job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != store.StatusPending {
		t.Errorf("Status = %q, want PENDING after reclaim", got.Status)
	}
	if got.WorkerID != nil || got.LeaseExpiresAt != nil {
		t.Errorf("lease fields not cleared after reclaim: %+v", got)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 (reclaim must not increment it)", got.RetryCount)
	}

	// A fresh claim must be able to pick the reclaimed job back up.
	reclaimedJob, err := s.ClaimNextPending(ctx, "worker-2", time.Minute)
	if err != nil || reclaimedJob == nil || reclaimedJob.ID != job.ID {
		t.Fatalf("ClaimNextPending after reclaim = %+v, %v, want to reclaim job %v", reclaimedJob, err, job.ID)
	}
}

func TestRenewLease_FailsForNonOwner(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	job, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t1", 3)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.ClaimNextPending(ctx, "worker-1", time.Minute); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}

	ok, err := s.RenewLease(ctx, job.ID, "worker-impostor", time.Minute)
	if err != nil {
		t.Fatalf("RenewLease: %v", err)
	}
	if ok {
		t.Error("RenewLease succeeded for a non-owning worker")
	}

	ok, err = s.RenewLease(ctx, job.ID, "worker-1", time.Minute)
	if err != nil {
		t.Fatalf("RenewLease: %v", err)
	}
	if !ok {
		t.Error("RenewLease failed for the owning worker")
	}
}
