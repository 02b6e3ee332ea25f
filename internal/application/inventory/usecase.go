package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService   = "inventory-service"
	useCaseReserve     = "inventory.reserve"
	useCaseRestock     = "inventory.restock"
	useCaseStockLookup = "inventory.stock"
)

type ReserveInput struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// ReserveStockUseCase decrements stock through the ledger and announces the reservation.
type ReserveStockUseCase struct {
	ledger    dominv.Ledger
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewReserveStockUseCase(ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *ReserveStockUseCase {
	return &ReserveStockUseCase{
		ledger:    ledger,
		publisher: publisher,
		obs:       application.NewInstruments(tel, inventoryService),
	}
}

func (uc *ReserveStockUseCase) Execute(ctx context.Context, cmd ReserveInput) (_ struct{}, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseReserve, "ReserveStock",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("inventory.quantity", cmd.Quantity),
	)
	run.Add(
		observability.F("order_id", cmd.OrderID),
		observability.F("product_id", cmd.ProductID),
		observability.F("quantity", cmd.Quantity),
	)
	defer func() { run.End(err) }()

	if err = dominv.ValidateQuantity(cmd.Quantity); err != nil {
		run.Fail("QUANTITY_INVALID")
		return struct{}{}, err
	}

	if err = uc.ledger.Reserve(ctx, cmd.ProductID, cmd.Quantity); err != nil {
		run.Fail(statusFromError(err))
		return struct{}{}, fmt.Errorf("inventory: reserve %s: %w", cmd.ProductID, err)
	}

	run.Span().AddEvent("inventory.reserved",
		trace.WithAttributes(attribute.String("product.id", cmd.ProductID)),
	)

	if pubErr := uc.obs.Publish(ctx, uc.publisher, dominv.NewStockReservedEvent(cmd.OrderID, cmd.ProductID, cmd.Quantity)); pubErr != nil {
		// the reservation stands; the event is best effort
		run.SetStatus("EVENT_PUBLISH_FAILED")
		run.Add(observability.F("event_publish_error", pubErr.Error()))
	}
	return struct{}{}, nil
}

type RestockInput struct {
	OrderID   string
	ProductID string
	Quantity  int
	Reason    string
}

// RestockUseCase returns stock to the ledger.
type RestockUseCase struct {
	ledger    dominv.Ledger
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewRestockUseCase(ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *RestockUseCase {
	return &RestockUseCase{
		ledger:    ledger,
		publisher: publisher,
		obs:       application.NewInstruments(tel, inventoryService),
	}
}

func (uc *RestockUseCase) Execute(ctx context.Context, cmd RestockInput) (_ struct{}, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseRestock, "Restock",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("inventory.quantity", cmd.Quantity),
		attribute.String("inventory.reason", cmd.Reason),
	)
	run.Add(
		observability.F("order_id", cmd.OrderID),
		observability.F("product_id", cmd.ProductID),
		observability.F("quantity", cmd.Quantity),
		observability.F("reason", cmd.Reason),
	)
	defer func() { run.End(err) }()

	if err = dominv.ValidateQuantity(cmd.Quantity); err != nil {
		run.Fail("QUANTITY_INVALID")
		return struct{}{}, err
	}

	if err = uc.ledger.Restock(ctx, cmd.ProductID, cmd.Quantity); err != nil {
		run.Fail(statusFromError(err))
		return struct{}{}, fmt.Errorf("inventory: restock %s: %w", cmd.ProductID, err)
	}

	if pubErr := uc.obs.Publish(ctx, uc.publisher, dominv.NewStockRestockedEvent(cmd.OrderID, cmd.ProductID, cmd.Quantity, cmd.Reason)); pubErr != nil {
		run.SetStatus("EVENT_PUBLISH_FAILED")
		run.Add(observability.F("event_publish_error", pubErr.Error()))
	}
	return struct{}{}, nil
}

func statusFromError(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, dominv.ErrInvalidQuantity):
		return "QUANTITY_INVALID"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "LEDGER_FAILURE"
	}
}
