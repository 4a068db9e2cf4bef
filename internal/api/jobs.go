// ABOUTME: huma-registered job submission and query endpoints.
// ABOUTME: POST /api/v1/jobs, GET /api/v1/jobs/{id}, GET /api/v1/jobs.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

// registerJobRoutes wires the job submission and query endpoints (spec §6).
func registerJobRoutes(api huma.API, svc *jobqueue.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-job",
		Method:      http.MethodPost,
		Path:        "/jobs",
		Summary:     "Submit a job",
		Description: "Enqueues a new job as PENDING. Submissions with a repeated idempotency_key for the same tenant return the original job instead of creating a duplicate.",
		Tags:        []string{"Jobs"},
	}, submitJobHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get a job",
		Description: "Returns a single job, scoped to the authenticated tenant.",
		Tags:        []string{"Jobs"},
	}, getJobHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Description: "Returns a tenant-scoped, optionally status-filtered page of jobs, oldest first.",
		Tags:        []string{"Jobs"},
	}, listJobsHandler(svc))
}

// JobResponse is the API representation of a store.Job.
type JobResponse struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Payload        json.RawMessage `json:"payload"`
	Result         json.RawMessage `json:"result,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	TraceID        string          `json:"trace_id"`
	RetryCount     int32           `json:"retry_count"`
	MaxRetries     int32           `json:"max_retries"`
	CreatedAt      string          `json:"created_at"` // RFC3339
	StartedAt      *string         `json:"started_at,omitempty"`
	CompletedAt    *string         `json:"completed_at,omitempty"`
}

func jobToResponse(j store.Job) JobResponse {
	r := JobResponse{
		ID:             j.ID.String(),
		Status:         j.Status,
		Payload:        j.Payload,
		Result:         j.Result,
		ErrorMessage:   j.ErrorMessage,
		IdempotencyKey: j.IdempotencyKey,
		TraceID:        j.TraceID,
		RetryCount:     j.RetryCount,
		MaxRetries:     j.MaxRetries,
		CreatedAt:      j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.UTC().Format(time.RFC3339)
		r.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.UTC().Format(time.RFC3339)
		r.CompletedAt = &s
	}
	return r
}

// ── POST /jobs ──────────────────────────────────────────────────────────────

// SubmitJobInput is the request for POST /jobs.
type SubmitJobInput struct {
	Authorization string `header:"Authorization" doc:"Bearer <tenant credential>"`
	Body          struct {
		Payload        json.RawMessage `json:"payload" doc:"Opaque job payload, passed through to the worker handler unchanged"`
		IdempotencyKey *string         `json:"idempotency_key,omitempty" doc:"Optional key; repeated submissions with the same key for this tenant return the original job"`
		MaxRetries     *int32          `json:"max_retries,omitempty" minimum:"0" doc:"Retry ceiling before dead-lettering; defaults to 3"`
	}
}

// SubmitJobOutput is the response for POST /jobs.
type SubmitJobOutput struct {
	Body *JobResponse
}

func submitJobHandler(svc *jobqueue.Service) func(context.Context, *SubmitJobInput) (*SubmitJobOutput, error) {
	return func(ctx context.Context, input *SubmitJobInput) (*SubmitJobOutput, error) {
		job, err := svc.Submit(ctx, bearerCredential(input.Authorization), jobqueue.SubmitRequest{
			Payload:        input.Body.Payload,
			IdempotencyKey: input.Body.IdempotencyKey,
			MaxRetries:     input.Body.MaxRetries,
		})
		if err != nil {
			return nil, mapServiceError(err)
		}
		resp := jobToResponse(job)
		return &SubmitJobOutput{Body: &resp}, nil
	}
}

// ── GET /jobs/{id} ───────────────────────────────────────────────────────────

// GetJobInput is the request for GET /jobs/{id}.
type GetJobInput struct {
	Authorization string `header:"Authorization" doc:"Bearer <tenant credential>"`
	ID            string `path:"id" doc:"Job id (UUID)"`
}

// GetJobOutput is the response for GET /jobs/{id}.
type GetJobOutput struct {
	Body *JobResponse
}

func getJobHandler(svc *jobqueue.Service) func(context.Context, *GetJobInput) (*GetJobOutput, error) {
	return func(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
		id, err := uuid.Parse(input.ID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid job id", err)
		}
		job, err := svc.Get(ctx, bearerCredential(input.Authorization), id)
		if err != nil {
			return nil, mapServiceError(err)
		}
		resp := jobToResponse(job)
		return &GetJobOutput{Body: &resp}, nil
	}
}

// ── GET /jobs ────────────────────────────────────────────────────────────────

// ListJobsInput is the request for GET /jobs.
type ListJobsInput struct {
	Authorization string `header:"Authorization" doc:"Bearer <tenant credential>"`
	Status        string `query:"status" doc:"Filter by status: PENDING, RUNNING, COMPLETED, FAILED, DLQ"`
	Limit         int32  `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Offset        int32  `query:"offset" minimum:"0" default:"0" doc:"Page offset"`
}

// ListJobsOutput is the response for GET /jobs.
type ListJobsOutput struct {
	Body *ListJobsBody
}

// ListJobsBody wraps the page of jobs.
type ListJobsBody struct {
	Items []JobResponse `json:"items"`
}

func listJobsHandler(svc *jobqueue.Service) func(context.Context, *ListJobsInput) (*ListJobsOutput, error) {
	return func(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
		jobs, err := svc.List(ctx, bearerCredential(input.Authorization), input.Status, input.Limit, input.Offset)
		if err != nil {
			return nil, mapServiceError(err)
		}
		items := make([]JobResponse, len(jobs))
		for i, j := range jobs {
			items[i] = jobToResponse(j)
		}
		return &ListJobsOutput{Body: &ListJobsBody{Items: items}}, nil
	}
}

// bearerCredential strips the "Bearer " prefix from an Authorization
// header value. An absent or malformed header is passed through
// unchanged — jobqueue.Service.Authenticate rejects it as unauthorized.
func bearerCredential(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && authHeader[:len(prefix)] == prefix {
		return authHeader[len(prefix):]
	}
	return authHeader
}
