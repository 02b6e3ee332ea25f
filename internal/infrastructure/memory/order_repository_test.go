package memory

import (
	"testing"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewOrderRepository()

	o := domain.New(gofakeit.UUID(), gofakeit.UUID())
	require.NoError(t, repo.Insert(ctx, o))
	assert.ErrorIs(t, repo.Insert(ctx, o), domain.ErrConflict)

	_, err := o.AttachItem(gofakeit.UUID(), "prod-1", 2, decimal.NewFromFloat(gofakeit.Price(1, 100)))
	require.NoError(t, err)

	stored, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items, "caller mutations must not leak into the store")

	require.NoError(t, repo.Update(ctx, o))
	stored, err = repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(o, stored, cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })))

	confirmed, cancelled := o.Clone(), o.Clone()
	require.NoError(t, confirmed.Confirm())
	require.NoError(t, cancelled.Cancel())
	require.NoError(t, repo.Update(ctx, confirmed))
	assert.ErrorIs(t, repo.Update(ctx, cancelled), domain.ErrInvalidTransition)
	stored, err = repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)

	require.NoError(t, repo.Delete(ctx, o.ID))
	_, err = repo.Get(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, o.ID), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, o), domain.ErrNotFound)
}
