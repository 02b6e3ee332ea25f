package order

import (
	"context"
	"time"
)

type IDGenerator interface {
	NewID() string
}

// InventoryPort is the only path through which the workflow changes stock.
type InventoryPort interface {
	Reserve(ctx context.Context, orderID, productID string, quantity int) error
	Restock(ctx context.Context, orderID, productID string, quantity int, reason string) error
}

// IdempotencyStore records compensation steps that already ran.
type IdempotencyStore interface {
	// Claim returns true when key was not claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Sleeper waits between payment attempts. It returns early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
