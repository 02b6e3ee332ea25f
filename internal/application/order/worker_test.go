package order_test

import (
	"testing"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestPaymentWorker_ConfirmsCreatedOrders(t *testing.T) {
	f := newFixture(t)
	bus := outbox.NewBus(nil)
	gw := scripted(payment.OutcomeSuccess)
	pay := appOrder.NewProcessPaymentUseCase(f.orders, gw, currency.USD, bus, nil)
	appOrder.NewPaymentWorker(bus, pay, nil).Start()
	bus.Start(t.Context())
	defer func() { require.NoError(t, bus.Stop(t.Context())) }()

	create := appOrder.NewCreateOrderUseCase(f.orders, f.users, f.catalog, f.inventory, f.ids, bus, nil)
	g, err := create.Execute(t.Context(), appOrder.CreateOrderInput{
		UserID: "user-ada",
		Items:  []appOrder.CreateOrderItem{item("prod-mouse", 1)},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		o, err := f.orders.Get(t.Context(), g.Order.ID)
		return err == nil && o.Status == domain.StatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, gw.Calls())
}

func TestPaymentWorker_SkipsOrdersNoLongerPending(t *testing.T) {
	f := newFixture(t)
	orderID := f.placeOrder(t, item("prod-mouse", 1))
	_, err := f.cancelUseCase().Execute(t.Context(), appOrder.CancelOrderInput{OrderID: orderID})
	require.NoError(t, err)

	bus := outbox.NewBus(nil)
	gw := scripted(payment.OutcomeSuccess)
	appOrder.NewPaymentWorker(bus, f.paymentUseCase(gw), nil).Start()
	bus.Start(t.Context())

	stored, err := f.orders.Get(t.Context(), orderID)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(t.Context(), domain.NewCreatedEvent(stored)))
	require.NoError(t, bus.Stop(t.Context()))

	assert.Equal(t, 0, gw.Calls())
	stored, err = f.orders.Get(t.Context(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
}
