package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// withTx runs fn inside a transaction. When db is already a pgx.Tx, fn joins it.
func withTx[T any](ctx context.Context, db DBTX, fn func(tx DBTX) (T, error)) (_ T, txErr error) {
	var zero T

	if tx, ok := db.(pgx.Tx); ok {
		return fn(tx)
	}

	beginner, ok := db.(txBeginner)
	if !ok {
		return zero, fmt.Errorf("db is neither pgx.Tx nor a transaction starter: %T", db)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}
