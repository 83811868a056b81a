// Package persistence holds the Postgres access layer: the schema
// migrator and a Store exposing typed reads and writes over the pool
// ledger tables. Services compose store calls inside serializable
// transactions; the Store itself never hides a transaction boundary.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so store methods can
// run standalone or join a caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store provides typed access to the pool ledger schema.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and raw reads.
func (s *Store) DB() *sql.DB { return s.db }

const serializableRetries = 3

// Serializable runs fn inside a SERIALIZABLE transaction, retrying on
// Postgres serialization failures (SQLSTATE 40001). Settlement and keep
// commits rely on this plus the UNIQUE(from_at, to_at) batch constraint
// for their concurrency guarantees.
func (s *Store) Serializable(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < serializableRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("begin serializable tx: %w", err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	}
	return fmt.Errorf("serializable tx: retries exhausted: %w", lastErr)
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}

// IsUniqueViolation reports SQLSTATE 23505, used to detect a concurrent
// settlement of the same span.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
