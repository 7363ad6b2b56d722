// README: Unit of work; runs a closure of store operations in one serializable transaction.
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Stores run
// their statements against it, so the same store code works inside and
// outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	// ErrTxConflict marks a transaction that lost a serialization race.
	// The request can be retried as-is; nothing was committed.
	ErrTxConflict = errors.New("transaction conflict, retry")
	// ErrTxFailed marks a commit failure in the underlying store.
	ErrTxFailed = errors.New("transaction failed")
)

// UnitOfWork wraps multi-record mutations so they commit or roll back as one.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Run executes fn inside a serializable transaction. If fn returns an error
// the transaction is rolled back and that error is returned unchanged, so
// business errors keep their identity. Serialization failures and deadlocks
// are mapped to ErrTxConflict.
func (u *UnitOfWork) Run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTxFailed, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
		return fmt.Errorf("%w: commit: %v", ErrTxFailed, err)
	}
	return nil
}

// 40001 serialization_failure, 40P01 deadlock_detected.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
