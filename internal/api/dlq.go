// ABOUTME: huma-registered dead-letter queue listing endpoint.
// ABOUTME: GET /api/v1/dlq.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

// registerDLQRoutes wires the dead-letter queue listing endpoint (spec §6).
func registerDLQRoutes(api huma.API, svc *jobqueue.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-dlq",
		Method:      http.MethodGet,
		Path:        "/dlq",
		Summary:     "List dead-lettered jobs",
		Description: "Returns a tenant-scoped, newest-first page of jobs that exhausted their retry ceiling.",
		Tags:        []string{"DLQ"},
	}, listDLQHandler(svc))
}

// DLQEntryResponse is the API representation of a store.DLQEntry.
type DLQEntryResponse struct {
	ID                string          `json:"id"`
	JobID             string          `json:"job_id"`
	Payload           json.RawMessage `json:"payload"`
	ErrorMessage      string          `json:"error_message"`
	OriginalCreatedAt string          `json:"original_created_at"` // RFC3339
	DlqAt             string          `json:"dlq_at"`              // RFC3339
}

func dlqEntryToResponse(e store.DLQEntry) DLQEntryResponse {
	return DLQEntryResponse{
		ID:                e.ID.String(),
		JobID:             e.JobID.String(),
		Payload:           e.Payload,
		ErrorMessage:      e.ErrorMessage,
		OriginalCreatedAt: e.OriginalCreatedAt.UTC().Format(time.RFC3339),
		DlqAt:             e.DlqAt.UTC().Format(time.RFC3339),
	}
}

// ListDLQInput is the request for GET /dlq.
type ListDLQInput struct {
	Authorization string `header:"Authorization" doc:"Bearer <tenant credential>"`
	Limit         int32  `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Offset        int32  `query:"offset" minimum:"0" default:"0" doc:"Page offset"`
}

// ListDLQOutput is the response for GET /dlq.
type ListDLQOutput struct {
	Body *ListDLQBody
}

// ListDLQBody wraps the page of dead-letter entries.
type ListDLQBody struct {
	Items []DLQEntryResponse `json:"items"`
}

func listDLQHandler(svc *jobqueue.Service) func(context.Context, *ListDLQInput) (*ListDLQOutput, error) {
	return func(ctx context.Context, input *ListDLQInput) (*ListDLQOutput, error) {
		entries, err := svc.DLQList(ctx, bearerCredential(input.Authorization), input.Limit, input.Offset)
		if err != nil {
			return nil, mapServiceError(err)
		}
		items := make([]DLQEntryResponse, len(entries))
		for i, e := range entries {
			items[i] = dlqEntryToResponse(e)
		}
		return &ListDLQOutput{Body: &ListDLQBody{Items: items}}, nil
	}
}
