package order_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	appInventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/payment"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

type sequenceIDs struct{ n atomic.Int64 }

func (s *sequenceIDs) NewID() string {
	return fmt.Sprintf("id-%d", s.n.Add(1))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type restockCall struct {
	productID string
	quantity  int
	reason    string
}

// recordingInventory forwards to the real inventory service and remembers restocks.
type recordingInventory struct {
	next       appOrder.InventoryPort
	mu         sync.Mutex
	restocks   []restockCall
	failReserv map[string]error
	failRestck map[string]error
	onReserve  func(productID string)
}

func (r *recordingInventory) Reserve(ctx context.Context, orderID, productID string, quantity int) error {
	if r.onReserve != nil {
		r.onReserve(productID)
	}
	if err, ok := r.failReserv[productID]; ok {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.next.Reserve(ctx, orderID, productID, quantity)
}

func (r *recordingInventory) Restock(ctx context.Context, orderID, productID string, quantity int, reason string) error {
	r.mu.Lock()
	err, fail := r.failRestck[productID]
	if fail {
		delete(r.failRestck, productID)
	}
	r.mu.Unlock()
	if fail {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.next.Restock(ctx, orderID, productID, quantity, reason); err != nil {
		return err
	}
	r.mu.Lock()
	r.restocks = append(r.restocks, restockCall{productID: productID, quantity: quantity, reason: reason})
	r.mu.Unlock()
	return nil
}

type fixture struct {
	orders    *memory.OrderRepository
	users     *memory.UserRepository
	catalog   *memory.CatalogRepository
	ledger    *memory.Ledger
	keys      *memory.IdempotencyStore
	inventory *recordingInventory
	events    *recordingPublisher
	ids       *sequenceIDs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:  memory.NewOrderRepository(),
		users:   memory.NewUserRepository(),
		catalog: memory.NewCatalogRepository(),
		ledger:  memory.NewLedger(),
		keys:    memory.NewIdempotencyStore(0),
		events:  &recordingPublisher{},
		ids:     &sequenceIDs{},
	}
	memory.SeedDemo(f.catalog, f.users, f.ledger)
	f.inventory = &recordingInventory{
		next:       appInventory.NewService(f.ledger, f.events, nil),
		failReserv: map[string]error{},
		failRestck: map[string]error{},
	}
	return f
}

func (f *fixture) createUseCase() *appOrder.CreateOrderUseCase {
	return appOrder.NewCreateOrderUseCase(f.orders, f.users, f.catalog, f.inventory, f.ids, f.events, nil)
}

func (f *fixture) cancelUseCase() *appOrder.CancelOrderUseCase {
	return appOrder.NewCancelOrderUseCase(f.orders, f.inventory, f.keys, f.events, nil)
}

func (f *fixture) paymentUseCase(gw *payment.SimulatedGateway, opts ...appOrder.PaymentOption) *appOrder.ProcessPaymentUseCase {
	return appOrder.NewProcessPaymentUseCase(f.orders, gw, currency.USD, f.events, nil, opts...)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	qty, err := f.ledger.CurrentStock(t.Context(), productID)
	require.NoError(t, err)
	return qty
}

// placeOrder creates a PENDING order for user-ada.
func (f *fixture) placeOrder(t *testing.T, items ...appOrder.CreateOrderItem) string {
	t.Helper()
	g, err := f.createUseCase().Execute(t.Context(), appOrder.CreateOrderInput{UserID: "user-ada", Items: items})
	require.NoError(t, err)
	return g.Order.ID
}

func item(productID string, qty int) appOrder.CreateOrderItem {
	return appOrder.CreateOrderItem{ProductID: productID, Quantity: qty}
}

// interleavedOrders runs beforeUpdate once, just ahead of the first Update,
// to land a competing operation between a use case's read and its write.
type interleavedOrders struct {
	*memory.OrderRepository
	once         sync.Once
	beforeUpdate func()
}

func (r *interleavedOrders) Update(ctx context.Context, o *domain.Order) error {
	r.once.Do(r.beforeUpdate)
	return r.OrderRepository.Update(ctx, o)
}

type gatewayFunc func(ctx context.Context, orderID string, amount dompay.Money) (dompay.Result, error)

func (f gatewayFunc) Charge(ctx context.Context, orderID string, amount dompay.Money) (dompay.Result, error) {
	return f(ctx, orderID, amount)
}
