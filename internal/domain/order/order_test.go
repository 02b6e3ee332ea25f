package order_test

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(o *order.Order) error
		transition func(o *order.Order) error
		wantStatus order.Status
		wantError  error
	}{
		{
			name:       "pending to confirmed: ok",
			transition: (*order.Order).Confirm,
			wantStatus: order.StatusConfirmed,
		},
		{
			name:       "pending to cancelled: ok",
			transition: (*order.Order).Cancel,
			wantStatus: order.StatusCancelled,
		},
		{
			name:       "confirmed to cancelled: invalid",
			prepare:    (*order.Order).Confirm,
			transition: (*order.Order).Cancel,
			wantStatus: order.StatusConfirmed,
			wantError:  order.ErrInvalidTransition,
		},
		{
			name:       "confirmed twice: invalid",
			prepare:    (*order.Order).Confirm,
			transition: (*order.Order).Confirm,
			wantStatus: order.StatusConfirmed,
			wantError:  order.ErrInvalidTransition,
		},
		{
			name:       "cancelled to confirmed: invalid",
			prepare:    (*order.Order).Cancel,
			transition: (*order.Order).Confirm,
			wantStatus: order.StatusCancelled,
			wantError:  order.ErrInvalidTransition,
		},
		{
			name:       "cancelled twice: invalid",
			prepare:    (*order.Order).Cancel,
			transition: (*order.Order).Cancel,
			wantStatus: order.StatusCancelled,
			wantError:  order.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := order.New("order-1", "user-1")
			if tt.prepare != nil {
				require.NoError(t, tt.prepare(o))
			}

			err := tt.transition(o)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStatus, o.Status)
		})
	}
}

func TestAttachItem(t *testing.T) {
	o := order.New("order-1", "user-1")
	require.True(t, o.Total.IsZero())

	_, err := o.AttachItem("item-1", "prod-a", 2, decimal.RequireFromString("10.25"))
	require.NoError(t, err)
	_, err = o.AttachItem("item-2", "prod-b", 3, decimal.RequireFromString("1.10"))
	require.NoError(t, err)

	assert.Len(t, o.Items, 2)
	assert.True(t, decimal.RequireFromString("23.80").Equal(o.Total), "total %s", o.Total)
	assert.True(t, o.ItemsTotal().Equal(o.Total))
	assert.Equal(t, "order-1", o.Items[0].OrderID)

	_, err = o.AttachItem("item-3", "prod-c", 0, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, order.ErrInvalidQuantity)

	_, err = o.AttachItem("item-3", "prod-c", 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, order.ErrInvalidPrice)

	require.NoError(t, o.Confirm())
	_, err = o.AttachItem("item-3", "prod-c", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.Len(t, o.Items, 2)
}

func TestCloneDoesNotShareItems(t *testing.T) {
	o := order.New("order-1", "user-1")
	_, err := o.AttachItem("item-1", "prod-a", 1, decimal.NewFromInt(5))
	require.NoError(t, err)

	c := o.Clone()
	c.Items[0].Quantity = 99
	c.Status = order.StatusCancelled

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, order.StatusPending, o.Status)
}

func TestParseStatus(t *testing.T) {
	st, err := order.ParseStatus("CONFIRMED")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, st)
	assert.True(t, st.Terminal())
	assert.False(t, order.StatusPending.Terminal())

	_, err = order.ParseStatus("SHIPPED")
	assert.Error(t, err)
}
