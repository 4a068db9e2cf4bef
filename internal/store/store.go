// Package store provides the data access layer. Simple CRUD queries use
// sqlc-shaped generated code backed by a *sql.DB (wrapping pgxpool via
// stdlib). The job claim/release/retry state machine needs row-level
// locking and owner-guarded updates that don't fit the generated layer,
// so it uses *pgxpool.Pool directly for native pgx transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	generated "github.com/fluxqueue/fluxqueue/internal/store/generated"
)

// Store is the central data access object. Callers should use the domain
// methods (tenants, jobs, dlq, metrics) rather than the raw queries or
// pool directly.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
	q    *generated.Queries
}

// New creates a Store backed by pool. The same pool is used for both
// sqlc-shaped generated queries (via the stdlib adapter) and direct pgx
// transactions.
func New(pool *pgxpool.Pool) *Store {
	db := stdlib.OpenDBFromPool(pool)
	return &Store{
		pool: pool,
		db:   db,
		q:    generated.New(db),
	}
}

// Pool returns the underlying pgxpool for callers that need native pgx
// transactions (job claim/retry state machine).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// DB returns the stdlib-wrapped *sql.DB for use with sqlc Queries.WithTx.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() {
	_ = s.db.Close()
	s.pool.Close()
}

// withTx runs fn inside a database/sql transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(*generated.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(s.q.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// pgxTx opens a native pgx transaction. Used by the job state machine for
// SELECT ... FOR UPDATE SKIP LOCKED claims and owner-guarded updates that
// need a single round-trip UPDATE ... WHERE worker_id = $owner check.
func (s *Store) pgxTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pgx tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on panic or fn error
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
