// ABOUTME: Tests for WorkerPool's lease reaper and startup concurrency rebuild.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fluxqueue/fluxqueue/internal/admission"
	"github.com/fluxqueue/fluxqueue/internal/eventbus"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

type fakePoolStore struct {
	mu         sync.Mutex
	reclaimed  []store.Job
	reclaimErr error
	running    map[string]int32
}

func (f *fakePoolStore) ClaimNextPending(context.Context, string, time.Duration) (*store.Job, error) {
	return nil, nil
}
func (f *fakePoolStore) RenewLease(context.Context, uuid.UUID, string, time.Duration) (bool, error) {
	return true, nil
}
func (f *fakePoolStore) CompleteJob(context.Context, uuid.UUID, string, json.RawMessage) error {
	return nil
}
func (f *fakePoolStore) FailAndRetry(context.Context, uuid.UUID, string, string, bool) (store.FailOutcome, error) {
	return store.Retried, nil
}
func (f *fakePoolStore) ReclaimExpiredLeases(context.Context) ([]store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reclaimed
	f.reclaimed = nil
	return r, f.reclaimErr
}
func (f *fakePoolStore) Summarize(context.Context, string) (store.Summary, error) {
	return store.Summary{}, nil
}
func (f *fakePoolStore) RecordSnapshot(context.Context, string, store.Summary) error {
	return nil
}
func (f *fakePoolStore) RunningCountByTenant(context.Context) (map[string]int32, error) {
	return f.running, nil
}

func TestPool_Start_RebuildsConcurrencyFromStore(t *testing.T) {
	t.Parallel()
	fs := &fakePoolStore{running: map[string]int32{"tenant-a": 2}}
	gate := admission.New()
	bus := eventbus.New(4)
	p := New(fs, gate, bus, Config{NumWorkers: 1, LeaseTTL: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Start(ctx)

	if n := gate.Running("tenant-a"); n != 2 {
		t.Fatalf("running count after rebuild = %d, want 2", n)
	}
}

func TestPool_Reaper_EmitsRetryForReclaimedJobs(t *testing.T) {
	t.Parallel()
	jobID := uuid.New()
	fs := &fakePoolStore{running: map[string]int32{}}
	gate := admission.New()
	gate.TryReserve("tenant-a", 1) // simulate the slot reserved at submission, still held while RUNNING
	bus := eventbus.New(4)
	sub := bus.Subscribe()
	t.Cleanup(sub.Close)

	p := New(fs, gate, bus, Config{NumWorkers: 0, LeaseTTL: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond})

	fs.mu.Lock()
	fs.reclaimed = []store.Job{{ID: jobID, TenantID: "tenant-a"}}
	fs.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go p.runReaper(ctx)
	defer cancel()

	select {
	case ev := <-sub.Events:
		if ev.Type != eventbus.JobRetry || ev.JobID != jobID.String() {
			t.Fatalf("event = %+v, want JOB_RETRY for %s", ev, jobID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reaper JOB_RETRY event")
	}

	if n := gate.Running("tenant-a"); n != 0 {
		t.Fatalf("running count after reclaim = %d, want 0 (reclaim releases the concurrency slot)", n)
	}
}
