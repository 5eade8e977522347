package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

type txRepository struct {
	tx pgx.Tx
}

var _ TxRepository = (*txRepository)(nil)

// WithTx executes the callback inside a repeatable-read transaction. The item
// row, container rows and mutation record all commit or roll back together;
// serialization failures surface as ConflictError for the caller to retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return translateErr("begin", err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translateErr("commit", err)
	}
	return nil
}

// translateErr classifies storage-layer failures. Unique violations and
// serialization failures become ConflictError; everything else from the
// driver becomes PersistenceError. Domain errors pass through unchanged.
func translateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &shared.ConflictError{Entity: "item"}
		case "40001", "40P01":
			return &shared.ConflictError{Entity: "item"}
		}
		return &shared.PersistenceError{Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &shared.PersistenceError{Op: op, Err: err}
}
