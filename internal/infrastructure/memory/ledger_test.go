package memory

import (
	"sync"
	"sync/atomic"
	"testing"

	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReserve(t *testing.T) {
	tests := []struct {
		name      string
		stock     int
		reserve   int
		wantStock int
		wantError error
	}{
		{name: "partial reservation: ok", stock: 10, reserve: 4, wantStock: 6},
		{name: "exact reservation: ok", stock: 5, reserve: 5, wantStock: 0},
		{name: "over reservation: insufficient", stock: 3, reserve: 4, wantStock: 3, wantError: dominv.ErrInsufficientStock},
		{name: "zero quantity: invalid", stock: 3, reserve: 0, wantStock: 3, wantError: dominv.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			l := NewLedger()
			l.Set("prod-1", tt.stock)

			err := l.Reserve(ctx, "prod-1", tt.reserve)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
			}

			got, err := l.CurrentStock(ctx, "prod-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, got)
		})
	}
}

func TestLedgerUnknownProduct(t *testing.T) {
	ctx := t.Context()
	l := NewLedger()

	assert.ErrorIs(t, l.Reserve(ctx, "nope", 1), dominv.ErrNotFound)
	assert.ErrorIs(t, l.Restock(ctx, "nope", 1), dominv.ErrNotFound)
	_, err := l.CurrentStock(ctx, "nope")
	assert.ErrorIs(t, err, dominv.ErrNotFound)
}

func TestLedgerConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := t.Context()
	l := NewLedger()
	l.Set("prod-1", 100)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for range 250 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Reserve(ctx, "prod-1", 1); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	got, err := l.CurrentStock(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), succeeded.Load())
	assert.Equal(t, 0, got)
}

func TestLedgerRestock(t *testing.T) {
	ctx := t.Context()
	l := NewLedger()
	l.Set("prod-1", 2)

	require.NoError(t, l.Reserve(ctx, "prod-1", 2))
	require.NoError(t, l.Restock(ctx, "prod-1", 2))
	assert.ErrorIs(t, l.Restock(ctx, "prod-1", -1), dominv.ErrInvalidQuantity)

	got, err := l.CurrentStock(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}
