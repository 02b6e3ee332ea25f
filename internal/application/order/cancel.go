package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderCancel       = "order.cancel"
	useCaseOrderCancelResume = "order.cancel_resume"
)

type CancelOrderInput struct {
	OrderID string
}

// CancelOrderUseCase marks a PENDING order CANCELLED and returns every item to stock.
// The status change is stored first, so a payment confirming at the same time
// either wins outright or loses before any stock moves.
type CancelOrderUseCase struct {
	repo      domain.Repository
	inventory InventoryPort
	keys      IdempotencyStore
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewCancelOrderUseCase(
	repo domain.Repository,
	inventory InventoryPort,
	keys IdempotencyStore,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CancelOrderUseCase {
	if keys == nil {
		keys = alwaysClaim{}
	}
	return &CancelOrderUseCase{
		repo:      repo,
		inventory: inventory,
		keys:      keys,
		publisher: publisher,
		obs:       application.NewInstruments(tel, orderService),
	}
}

func RestockKey(orderID, itemID string) string {
	return fmt.Sprintf("restock:%s:%s", orderID, itemID)
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, in CancelOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseOrderCancel, "CancelOrder", attribute.String("order.id", in.OrderID))
	run.Add(observability.F("order_id", in.OrderID))
	defer func() { run.End(err) }()

	entity, err := uc.repo.Get(ctx, in.OrderID)
	if err != nil {
		run.Fail(lookupStatus(err, "ORDER"))
		return nil, wrapRepositoryError(err)
	}
	if err = entity.Cancel(); err != nil {
		run.Fail("ORDER_NOT_PENDING")
		return nil, fmt.Errorf("order: cancel %s in status %s: %w", entity.ID, entity.Status, err)
	}
	if err = uc.repo.Update(ctx, entity); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			run.Fail("ORDER_NOT_PENDING")
			return nil, fmt.Errorf("order: cancel %s: %w", entity.ID, err)
		}
		run.Fail("REPO_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}

	if pubErr := uc.obs.Publish(ctx, uc.publisher, domain.NewCancelledEvent(entity)); pubErr != nil {
		run.SetStatus("EVENT_PUBLISH_FAILED")
		run.Add(observability.F("event_publish_error", pubErr.Error()))
	}

	if err = uc.restockAll(ctx, run, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Resume finishes the restock of a CANCELLED order whose cancel stopped on a
// ledger error. Items already returned are skipped through their restock keys.
func (uc *CancelOrderUseCase) Resume(ctx context.Context, in CancelOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseOrderCancelResume, "ResumeCancel", attribute.String("order.id", in.OrderID))
	run.Add(observability.F("order_id", in.OrderID))
	defer func() { run.End(err) }()

	entity, err := uc.repo.Get(ctx, in.OrderID)
	if err != nil {
		run.Fail(lookupStatus(err, "ORDER"))
		return nil, wrapRepositoryError(err)
	}
	if entity.Status != domain.StatusCancelled {
		run.Fail("ORDER_NOT_CANCELLED")
		return nil, fmt.Errorf("order: resume cancel %s in status %s: %w", entity.ID, entity.Status, ErrInvalidTransition)
	}
	if err = uc.restockAll(ctx, run, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// restockAll claims each item's key before restocking it. A failed restock
// releases its key so Resume can pick the item up again.
func (uc *CancelOrderUseCase) restockAll(ctx context.Context, run *application.Run, entity *domain.Order) error {
	restocked, skipped := 0, 0
	var errs []error
	for _, it := range entity.Items {
		key := RestockKey(entity.ID, it.ID)
		claimed, claimErr := uc.keys.Claim(ctx, key)
		if claimErr != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", key, claimErr))
			continue
		}
		if !claimed {
			skipped++
			continue
		}
		if restockErr := uc.inventory.Restock(ctx, entity.ID, it.ProductID, it.Quantity, dominv.RestockReasonCancellation); restockErr != nil {
			errs = append(errs, fmt.Errorf("restock %s: %w", it.ProductID, restockErr))
			if relErr := uc.keys.Release(context.WithoutCancel(ctx), key); relErr != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", key, relErr))
			}
			continue
		}
		restocked++
	}
	run.Add(
		observability.F("restocked_items", restocked),
		observability.F("skipped_items", skipped),
	)
	if len(errs) > 0 {
		run.Fail("RESTOCK_INCOMPLETE")
		return fmt.Errorf("order: cancel %s: %w: %w", entity.ID, ErrRestockIncomplete, errors.Join(errs...))
	}
	return nil
}

type alwaysClaim struct{}

func (alwaysClaim) Claim(context.Context, string) (bool, error) { return true, nil }
func (alwaysClaim) Release(context.Context, string) error       { return nil }
