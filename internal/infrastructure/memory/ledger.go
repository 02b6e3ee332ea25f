package memory

import (
	"context"
	"sync"
	"sync/atomic"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
)

// Ledger keeps one atomic counter per product. Reserve is a compare-and-swap
// loop, so concurrent reservations never drive a counter below zero.
type Ledger struct {
	mu    sync.RWMutex
	stock map[string]*atomic.Int64
}

func NewLedger() *Ledger {
	return &Ledger{stock: make(map[string]*atomic.Int64)}
}

// Set registers productID with an absolute stock level.
func (l *Ledger) Set(productID string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.stock[productID]
	if !ok {
		c = new(atomic.Int64)
		l.stock[productID] = c
	}
	c.Store(int64(quantity))
}

func (l *Ledger) counter(productID string) (*atomic.Int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.stock[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if err := domain.ValidateQuantity(quantity); err != nil {
		return err
	}
	c, err := l.counter(productID)
	if err != nil {
		return err
	}
	q := int64(quantity)
	for {
		cur := c.Load()
		if cur < q {
			return domain.ErrInsufficientStock
		}
		if c.CompareAndSwap(cur, cur-q) {
			return nil
		}
	}
}

func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if err := domain.ValidateQuantity(quantity); err != nil {
		return err
	}
	c, err := l.counter(productID)
	if err != nil {
		return err
	}
	c.Add(int64(quantity))
	return nil
}

func (l *Ledger) CurrentStock(ctx context.Context, productID string) (int, error) {
	_ = ctx
	c, err := l.counter(productID)
	if err != nil {
		return 0, err
	}
	return int(c.Load()), nil
}
