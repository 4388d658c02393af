// internal/database/db.go
package database

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the service's statements against a pool or a transaction.
type Queries struct {
	db DBTX
	sq sq.StatementBuilderType
}

func New(db DBTX) *Queries {
	return &Queries{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return New(tx)
}

// Savepoint marks a point inside the current transaction that a later
// RollbackToSavepoint can return to. Only valid on Queries bound to a transaction.
func (q *Queries) Savepoint(ctx context.Context, name string) error {
	_, err := q.db.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (q *Queries) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := q.db.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (q *Queries) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := q.db.Exec(ctx, "RELEASE SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

// Store owns the connection pool and hands out Queries, optionally inside a transaction.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: New(pool),
		pool:    pool,
	}
}

// InTx runs fn inside a transaction that is committed when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	const op = "internal.database.InTx"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
