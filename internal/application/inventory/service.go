package inventory

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Service is the only entry point through which stock changes; the order workflow depends on it.
type Service struct {
	ledger  dominv.Ledger
	reserve application.UseCase[ReserveInput, struct{}]
	restock application.UseCase[RestockInput, struct{}]
	obs     application.Instruments
}

func NewService(ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	return &Service{
		ledger:  ledger,
		reserve: NewReserveStockUseCase(ledger, publisher, tel),
		restock: NewRestockUseCase(ledger, publisher, tel),
		obs:     application.NewInstruments(tel, inventoryService),
	}
}

func (s *Service) Reserve(ctx context.Context, orderID, productID string, quantity int) error {
	_, err := s.reserve.Execute(ctx, ReserveInput{OrderID: orderID, ProductID: productID, Quantity: quantity})
	return err
}

func (s *Service) Restock(ctx context.Context, orderID, productID string, quantity int, reason string) error {
	_, err := s.restock.Execute(ctx, RestockInput{OrderID: orderID, ProductID: productID, Quantity: quantity, Reason: reason})
	return err
}

func (s *Service) CurrentStock(ctx context.Context, productID string) (_ int, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseStockLookup, "CurrentStock",
		attribute.String("product.id", productID),
	)
	defer func() { run.End(err) }()

	qty, err := s.ledger.CurrentStock(ctx, productID)
	if err != nil {
		run.Fail(statusFromError(err))
		return 0, fmt.Errorf("inventory: stock %s: %w", productID, err)
	}
	run.Add(observability.F("stock", qty))
	return qty, nil
}
