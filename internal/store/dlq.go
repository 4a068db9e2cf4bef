package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	generated "github.com/fluxqueue/fluxqueue/internal/store/generated"
)

// DLQEntry is the domain view of a dlq_entries row: an immutable
// copy-forward of a job that exhausted its retry ceiling.
type DLQEntry struct {
	ID                uuid.UUID
	JobID             uuid.UUID
	TenantID          string
	Payload           json.RawMessage
	ErrorMessage      string
	OriginalCreatedAt time.Time
	DlqAt             time.Time
}

func fromGeneratedDLQEntry(g generated.DlqEntry) DLQEntry {
	return DLQEntry{
		ID:                g.ID,
		JobID:             g.JobID,
		TenantID:          g.TenantID,
		Payload:           g.Payload,
		ErrorMessage:      g.ErrorMessage,
		OriginalCreatedAt: g.OriginalCreatedAt,
		DlqAt:             g.DlqAt,
	}
}

// ListDLQ returns a tenant-scoped, newest-first page of dead-lettered jobs.
func (s *Store) ListDLQ(ctx context.Context, tenantID string, limit, offset int32) ([]DLQEntry, error) {
	rows, err := s.q.ListDLQEntries(ctx, generated.ListDLQEntriesParams{
		TenantID: tenantID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list dlq entries: %w", err)
	}
	out := make([]DLQEntry, len(rows))
	for i, g := range rows {
		out[i] = fromGeneratedDLQEntry(g)
	}
	return out, nil
}
