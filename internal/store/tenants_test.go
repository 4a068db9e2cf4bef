// ABOUTME: Integration tests for tenant CRUD and the RunningCountByTenant rebuild query.
// ABOUTME: Uses testutil.NewTestDB which starts a real Postgres container with migrations.
package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fluxqueue/fluxqueue/internal/store"
	"github.com/fluxqueue/fluxqueue/internal/testutil"
)

func TestCreateAndGetTenant(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "tenant-a", "tenant-a:secret", 5, 120)
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if tenant.MaxConcurrentJobs != 5 || tenant.RateLimitPerMinute != 120 {
		t.Errorf("tenant = %+v, want limits 5/120", tenant)
	}

	got, err := s.GetTenantByID(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("GetTenantByID: %v", err)
	}
	if got.Credential != "tenant-a:secret" {
		t.Errorf("Credential = %q, want %q", got.Credential, "tenant-a:secret")
	}
}

func TestGetTenantByID_NotFound(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)

	_, err := s.GetTenantByID(context.Background(), "nobody")
	if err != store.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunningCountByTenant_ReflectsOnlyRunningJobs(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")
	mustCreateTenant(t, s, "tenant-b")

	for i := 0; i < 3; i++ {
		if _, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t", 3); err != nil {
			t.Fatalf("CreateJob tenant-a: %v", err)
		}
	}
	if _, err := s.CreateJob(ctx, "tenant-b", json.RawMessage(`{}`), nil, "t", 3); err != nil {
		t.Fatalf("CreateJob tenant-b: %v", err)
	}

	// Claims are FIFO across tenants, so all three claims take tenant-a's
	// jobs (created first). Two stay RUNNING; the third is completed
	// (COMPLETED, should not count). tenant-b's job stays PENDING (should
	// not count either).
	if _, err := s.ClaimNextPending(ctx, "w1", time.Minute); err != nil {
		t.Fatalf("claim 1: %v", err)
	}
	if _, err := s.ClaimNextPending(ctx, "w2", time.Minute); err != nil {
		t.Fatalf("claim 2: %v", err)
	}
	claimed3, err := s.ClaimNextPending(ctx, "w3", time.Minute)
	if err != nil || claimed3 == nil {
		t.Fatalf("claim 3: %v, %+v", err, claimed3)
	}
	if err := s.CompleteJob(ctx, claimed3.ID, "w3", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	counts, err := s.RunningCountByTenant(ctx)
	if err != nil {
		t.Fatalf("RunningCountByTenant: %v", err)
	}
	if counts["tenant-a"] != 2 {
		t.Errorf("tenant-a running = %d, want 2", counts["tenant-a"])
	}
	if _, ok := counts["tenant-b"]; ok && counts["tenant-b"] != 0 {
		t.Errorf("tenant-b running = %d, want 0 (its only job is still PENDING)", counts["tenant-b"])
	}
}

func TestSummarize_CountsByStatus(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	mustCreateTenant(t, s, "tenant-a")

	for i := 0; i < 2; i++ {
		if _, err := s.CreateJob(ctx, "tenant-a", json.RawMessage(`{}`), nil, "t", 3); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	claimed, err := s.ClaimNextPending(ctx, "w1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending: %v, %+v", err, claimed)
	}
	if err := s.CompleteJob(ctx, claimed.ID, "w1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	sum, err := s.Summarize(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 2 || sum.Completed != 1 || sum.Pending != 1 {
		t.Errorf("Summary = %+v, want {Total:2 Completed:1 Pending:1 ...}", sum)
	}
}
