// Package generated holds the sqlc-shaped query layer: one typed Go method
// per hand-written SQL statement, a Queries struct wrapping a DBTX, and a
// WithTx constructor so the same queries run standalone or inside a
// *sql.Tx. Hand-authored (no sqlc toolchain available in this environment)
// but kept in the exact shape sqlc itself would generate, matching the
// convention the store package already assumes (see internal/store/store.go).
package generated

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries is the generated data-access layer for simple, non-transactional
// CRUD. Operations that require row-level locking (SKIP LOCKED claims,
// owner-guarded updates) bypass this layer and use pgx transactions
// directly from internal/store/jobs.go.
type Queries struct {
	db DBTX
}

// New returns Queries backed by db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a new Queries using tx in place of the original DBTX.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
