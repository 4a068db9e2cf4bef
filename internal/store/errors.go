package store

import "errors"

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrLeaseLost is returned by an owner-guarded update (renew, complete,
// fail_and_retry) when the affected row is no longer owned by the
// calling worker — another reaper or worker already reclaimed it.
var ErrLeaseLost = errors.New("store: lease lost")

// ErrIdempotentReplay is returned by CreateJob when an existing job
// already exists for the given (tenant, idempotency_key) pair. The
// caller should return the existing job rather than treat this as an
// error condition.
var ErrIdempotentReplay = errors.New("store: idempotent replay")
