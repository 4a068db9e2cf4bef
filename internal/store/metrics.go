package store

import (
	"context"
	"fmt"

	generated "github.com/fluxqueue/fluxqueue/internal/store/generated"
)

// Summary is a live per-status job count for one tenant, computed on
// demand from the jobs table (GROUP BY status).
type Summary struct {
	Total     int32
	Pending   int32
	Running   int32
	Completed int32
	Failed    int32
	DLQ       int32
}

// Summarize computes the live per-status job count for tenantID.
func (s *Store) Summarize(ctx context.Context, tenantID string) (Summary, error) {
	rows, err := s.q.SummarizeByStatus(ctx, tenantID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize tenant %s: %w", tenantID, err)
	}
	var sum Summary
	for _, r := range rows {
		n := int32(r.Count)
		sum.Total += n
		switch r.Status {
		case StatusPending:
			sum.Pending = n
		case StatusRunning:
			sum.Running = n
		case StatusCompleted:
			sum.Completed = n
		case StatusFailed:
			sum.Failed = n
		case StatusDLQ:
			sum.DLQ = n
		}
	}
	return sum, nil
}

// RecordSnapshot writes one periodic roll-up row to metrics_snapshots, as
// run by the worker pool's snapshot goroutine on
// METRICS_SNAPSHOT_INTERVAL_SECONDS.
func (s *Store) RecordSnapshot(ctx context.Context, tenantID string, sum Summary) error {
	err := s.q.InsertMetricsSnapshot(ctx, generated.InsertMetricsSnapshotParams{
		TenantID:  tenantID,
		Total:     sum.Total,
		Pending:   sum.Pending,
		Running:   sum.Running,
		Completed: sum.Completed,
		Failed:    sum.Failed,
		Dlq:       sum.DLQ,
	})
	if err != nil {
		return fmt.Errorf("record metrics snapshot %s: %w", tenantID, err)
	}
	return nil
}
