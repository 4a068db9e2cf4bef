// Package worker provides a goroutine pool that claims and executes jobs
// from the jobs table using FOR UPDATE SKIP LOCKED, renews leases on a
// heartbeat, and drives the retry/DLQ ladder on failure.
//
// A single Handler is registered before calling Pool.Start — unlike a
// per-queue dispatch table, fluxqueue has one global FIFO-within-tenant
// queue (spec §4.4); the pluggable business logic lives entirely inside
// the one Handler.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is the claimed unit of work handed to a Handler.
type Job struct {
	ID         uuid.UUID
	TenantID   string
	Payload    json.RawMessage
	RetryCount int32
	MaxRetries int32
	TraceID    string
}

// Heartbeat renews the calling worker's lease on the job currently being
// processed. It returns false once the lease can no longer be renewed
// (a reaper already reclaimed it because the lease expired) — handlers
// that receive false must abandon work promptly; any result produced
// after that point is discarded.
type Heartbeat func(ctx context.Context) bool

// Handler executes the pluggable business logic for one job. It must
// not leak resources on deadline expiry (ctx is cancelled when the
// lease can no longer be renewed). Returning a PermanentFailure bypasses
// the retry ladder and promotes the job directly to DLQ; any other
// non-nil error is treated as retryable.
type Handler func(ctx context.Context, job Job, heartbeat Heartbeat) (json.RawMessage, error)

// PermanentFailure marks a handler error as non-retryable: the worker
// promotes the job straight to DLQ regardless of retry_count.
type PermanentFailure struct {
	Err error
}

func (p *PermanentFailure) Error() string { return p.Err.Error() }
func (p *PermanentFailure) Unwrap() error { return p.Err }

// NewPermanentFailure wraps err so the worker treats it as non-retryable.
func NewPermanentFailure(err error) error {
	return &PermanentFailure{Err: err}
}

// SleepHandler is the built-in test-stub handler (spec: "The built-in
// job handler is a test stub that sleeps and returns success"). Real
// deployments register their own Handler with Pool.SetHandler.
func SleepHandler(d time.Duration) Handler {
	return func(ctx context.Context, job Job, heartbeat Heartbeat) (json.RawMessage, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return json.RawMessage(`{"status":"ok"}`), nil
	}
}
