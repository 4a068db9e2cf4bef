// ABOUTME: Typed sentinel errors for the job submission and query API.
// ABOUTME: internal/api maps each to an HTTP status; nothing above this package inspects error strings.
package jobqueue

import "errors"

var (
	// ErrUnauthorized means the supplied credential did not match any tenant.
	ErrUnauthorized = errors.New("jobqueue: unauthorized")

	// ErrNotFound means the job or DLQ entry does not exist, or exists
	// under a different tenant (the two are indistinguishable to the caller).
	ErrNotFound = errors.New("jobqueue: not found")

	// ErrRateLimited means the tenant's per-minute submission rate was exceeded.
	ErrRateLimited = errors.New("jobqueue: rate limited")

	// ErrConcurrencyExceeded means the tenant's max_concurrent_jobs is reached.
	ErrConcurrencyExceeded = errors.New("jobqueue: concurrency limit exceeded")

	// ErrValidation means the request payload failed basic validation
	// (empty payload, negative max_retries, etc).
	ErrValidation = errors.New("jobqueue: validation failed")
)
