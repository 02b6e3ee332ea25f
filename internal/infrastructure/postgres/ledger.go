package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"

	"github.com/jackc/pgx/v5"
)

// Ledger stores stock in products.stock. Reserve is a single conditional
// UPDATE, so the row lock taken by Postgres serialises concurrent reservations.
type Ledger struct {
	db DBTX
}

func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return err
	}
	tag, err := l.db.Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		productID, quantity)
	if err != nil {
		return fmt.Errorf("ledger: reserve: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	exists, err := l.exists(ctx, productID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) error {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return err
	}
	tag, err := l.db.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, quantity)
	if err != nil {
		return fmt.Errorf("ledger: restock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (l *Ledger) CurrentStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := l.db.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: current stock: %w", err)
	}
	return stock, nil
}

func (l *Ledger) exists(ctx context.Context, productID string) (bool, error) {
	var ok bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&ok); err != nil {
		return false, fmt.Errorf("ledger: lookup: %w", err)
	}
	return ok, nil
}
