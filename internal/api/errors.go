// ABOUTME: Maps jobqueue sentinel errors to huma HTTP error responses.
// ABOUTME: Nothing above this package inspects jobqueue error strings directly.
package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
)

// mapServiceError converts an error returned by jobqueue.Service into the
// huma error huma.Register should surface to the client. Unrecognized
// errors pass through unchanged so huma's default 500 handling applies.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, jobqueue.ErrUnauthorized):
		return huma.Error401Unauthorized("invalid or missing credential", err)
	case errors.Is(err, jobqueue.ErrNotFound):
		return huma.Error404NotFound("job not found", err)
	case errors.Is(err, jobqueue.ErrRateLimited):
		return huma.Error429TooManyRequests("submission rate limit exceeded", err)
	case errors.Is(err, jobqueue.ErrConcurrencyExceeded):
		return huma.Error409Conflict("concurrent job limit exceeded", err)
	case errors.Is(err, jobqueue.ErrValidation):
		return huma.Error400BadRequest("invalid request", err)
	default:
		return err
	}
}
