// Package tx carries a SQL transaction through context so stores can join an
// ambient transaction without changing their signatures. The check-in
// workflow and other multi-entity writes run their store calls under
// Runner.RunInTx so all writes commit or none do.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner begins transactions against a database handle.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a Runner for db. A nil db yields a Runner whose RunInTx
// executes fn without a transaction, which keeps memory-store wiring simple.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// RunInTx executes fn with a transaction stored in the derived context.
// If fn returns an error or panics the transaction is rolled back;
// otherwise it is committed. Nested calls reuse the outer transaction.
func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.db == nil {
		return fn(ctx)
	}
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
