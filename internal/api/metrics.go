// ABOUTME: huma-registered tenant job metrics endpoint.
// ABOUTME: GET /api/v1/metrics — distinct from the Prometheus /metrics process endpoint.
package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
	"github.com/fluxqueue/fluxqueue/internal/store"
)

// registerMetricsRoutes wires the tenant-scoped job roll-up endpoint (spec §6).
func registerMetricsRoutes(api huma.API, svc *jobqueue.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Summary:     "Get job metrics",
		Description: "Returns the live per-status job count for the authenticated tenant.",
		Tags:        []string{"Metrics"},
	}, getMetricsHandler(svc))
}

// MetricsResponse is the API representation of a store.Summary.
type MetricsResponse struct {
	Total     int32 `json:"total"`
	Pending   int32 `json:"pending"`
	Running   int32 `json:"running"`
	Completed int32 `json:"completed"`
	Failed    int32 `json:"failed"`
	DLQ       int32 `json:"dlq"`
}

func summaryToResponse(s store.Summary) MetricsResponse {
	return MetricsResponse{
		Total:     s.Total,
		Pending:   s.Pending,
		Running:   s.Running,
		Completed: s.Completed,
		Failed:    s.Failed,
		DLQ:       s.DLQ,
	}
}

// GetMetricsInput is the request for GET /metrics.
type GetMetricsInput struct {
	Authorization string `header:"Authorization" doc:"Bearer <tenant credential>"`
}

// GetMetricsOutput is the response for GET /metrics.
type GetMetricsOutput struct {
	Body *MetricsResponse
}

func getMetricsHandler(svc *jobqueue.Service) func(context.Context, *GetMetricsInput) (*GetMetricsOutput, error) {
	return func(ctx context.Context, input *GetMetricsInput) (*GetMetricsOutput, error) {
		sum, err := svc.Metrics(ctx, bearerCredential(input.Authorization))
		if err != nil {
			return nil, mapServiceError(err)
		}
		resp := summaryToResponse(sum)
		return &GetMetricsOutput{Body: &resp}, nil
	}
}
