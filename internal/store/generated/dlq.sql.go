package generated

import (
	"context"
)

const dlqColumns = `id, job_id, tenant_id, payload, error_message, original_created_at, dlq_at`

const listDLQEntries = `SELECT ` + dlqColumns + ` FROM dlq_entries
WHERE tenant_id = $1
ORDER BY dlq_at DESC
LIMIT $2 OFFSET $3`

// ListDLQEntriesParams holds the pagination parameters for ListDLQEntries.
type ListDLQEntriesParams struct {
	TenantID string
	Limit    int32
	Offset   int32
}

// ListDLQEntries returns a tenant-scoped, newest-first page of
// dead-lettered jobs.
func (q *Queries) ListDLQEntries(ctx context.Context, arg ListDLQEntriesParams) ([]DlqEntry, error) {
	rows, err := q.db.QueryContext(ctx, listDLQEntries, arg.TenantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DlqEntry
	for rows.Next() {
		var d DlqEntry
		if err := rows.Scan(&d.ID, &d.JobID, &d.TenantID, &d.Payload, &d.ErrorMessage, &d.OriginalCreatedAt, &d.DlqAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
