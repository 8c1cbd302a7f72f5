// Package store is the Repository layer (Design Notes: "a small Repository
// interface per entity exposing only the queries the domain uses;
// detectors receive repositories, not a raw DB handle"). It is grounded on
// the teacher's internal/db/postgres.go: a pgxpool.Pool wrapped in a thin
// Store, transactions opened per-operation, the caller owning commit.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the single source of truth handle. Every pipeline step opens its
// own transaction against it and is responsible for commit on success and
// rollback on any exception (§5 "Shared-resource policy").
type Store struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pool for subsystems that need to open their
// own multi-statement transactions (orchestrator steps, the drift reporter).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
