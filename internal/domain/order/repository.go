package order

import "context"

type Repository interface {
	// Insert stores a new order shell. ErrConflict when the id is taken.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Update persists status, total and items. It succeeds only while the
	// stored order is still PENDING; otherwise it returns ErrInvalidTransition
	// and the stored order is left as is.
	Update(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id string) error
}
