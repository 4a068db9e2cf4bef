package generated

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant mirrors a row of the tenants table.
type Tenant struct {
	TenantID           string
	Credential         string
	MaxConcurrentJobs  int32
	RateLimitPerMinute int32
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Job mirrors a row of the jobs table.
type Job struct {
	ID              uuid.UUID
	TenantID        string
	Status          string
	Payload         json.RawMessage
	Result          json.RawMessage
	ErrorMessage    sql.NullString
	IdempotencyKey  sql.NullString
	TraceID         string
	RetryCount      int32
	MaxRetries      int32
	WorkerID        sql.NullString
	LeaseExpiresAt  sql.NullTime
	CreatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// DlqEntry mirrors a row of the dlq_entries table.
type DlqEntry struct {
	ID                uuid.UUID
	JobID             uuid.UUID
	TenantID          string
	Payload           json.RawMessage
	ErrorMessage      string
	OriginalCreatedAt time.Time
	DlqAt             time.Time
}

// MetricsSnapshot mirrors a row of the metrics_snapshots table.
type MetricsSnapshot struct {
	TenantID  string
	TakenAt   time.Time
	Total     int32
	Pending   int32
	Running   int32
	Completed int32
	Failed    int32
	Dlq       int32
}
