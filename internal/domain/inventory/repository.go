package inventory

import (
	"context"
)

// Ledger owns per-product stock counters. Stock never goes negative.
type Ledger interface {
	// Reserve decrements stock by quantity in one conditional step.
	// It returns ErrInsufficientStock without mutating anything when stock < quantity.
	Reserve(ctx context.Context, productID string, quantity int) error
	// Restock increments stock; used as a compensating action.
	Restock(ctx context.Context, productID string, quantity int) error
	CurrentStock(ctx context.Context, productID string) (int, error)
}
