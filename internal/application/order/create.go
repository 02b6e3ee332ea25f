package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
)

type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	UserID string
	Items  []CreateOrderItem
}

// CreateOrderUseCase reserves stock for every line and persists a PENDING order.
// A failure after the shell is stored releases earlier reservations last-first and discards the shell.
type CreateOrderUseCase struct {
	repo        domain.Repository
	users       domuser.Repository
	catalog     domcatalog.Repository
	inventory   InventoryPort
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	obs         application.Instruments
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	users domuser.Repository,
	catalog domcatalog.Repository,
	inventory InventoryPort,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		repo:        repo,
		users:       users,
		catalog:     catalog,
		inventory:   inventory,
		idGenerator: idGen,
		publisher:   publisher,
		obs:         application.NewInstruments(tel, orderService),
	}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *OrderGraph, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.user_id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	run.Add(observability.F("user_id", cmd.UserID))
	defer func() { run.End(err) }()

	if err = validateCreate(cmd); err != nil {
		run.Fail("INPUT_INVALID")
		return nil, err
	}

	user, err := uc.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		run.Fail(lookupStatus(err, "USER"))
		return nil, fmt.Errorf("order: resolve user %s: %w", cmd.UserID, err)
	}

	entity := domain.New(uc.idGenerator.NewID(), user.ID)
	run.Add(observability.F("order_id", entity.ID))
	run.Span().SetAttributes(attribute.String("order.id", entity.ID))
	if err = uc.repo.Insert(ctx, entity); err != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, wrapRepositoryError(err)
	}

	var sg saga
	sg.add("discard_order", func(ctx context.Context) error {
		return uc.repo.Delete(ctx, entity.ID)
	})
	defer func() {
		if err == nil {
			return
		}
		if compErr := uc.rollback(ctx, run, &sg, entity, err); compErr != nil {
			err = errors.Join(err, compErr)
		}
	}()

	products := make(map[string]*domcatalog.Product, len(cmd.Items))
	for _, line := range cmd.Items {
		product, lookupErr := uc.catalog.FindProduct(ctx, line.ProductID)
		if lookupErr != nil {
			run.Fail(lookupStatus(lookupErr, "PRODUCT"))
			return nil, fmt.Errorf("order: resolve product %s: %w", line.ProductID, lookupErr)
		}

		if reserveErr := uc.inventory.Reserve(ctx, entity.ID, product.ID, line.Quantity); reserveErr != nil {
			if errors.Is(reserveErr, dominv.ErrInsufficientStock) {
				run.Fail("INSUFFICIENT_STOCK")
				return nil, &dominv.InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
				}
			}
			run.Fail("RESERVE_FAILED")
			return nil, fmt.Errorf("order: reserve %s: %w", product.ID, reserveErr)
		}
		productID, quantity := product.ID, line.Quantity
		sg.add("restock:"+productID, func(ctx context.Context) error {
			return uc.inventory.Restock(ctx, entity.ID, productID, quantity, dominv.RestockReasonCompensation)
		})

		if _, err = entity.AttachItem(uc.idGenerator.NewID(), product.ID, line.Quantity, product.Price); err != nil {
			run.Fail("ATTACH_ITEM_FAILED")
			return nil, fmt.Errorf("order: attach %s: %w", product.ID, err)
		}
		products[product.ID] = product
	}

	if err = uc.repo.Update(ctx, entity); err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, wrapRepositoryError(err)
	}

	if pubErr := uc.obs.Publish(ctx, uc.publisher, domain.NewCreatedEvent(entity)); pubErr != nil {
		run.SetStatus("EVENT_PUBLISH_FAILED")
		run.Add(observability.F("event_publish_error", pubErr.Error()))
	}

	run.Add(
		observability.F("total", entity.Total.String()),
		observability.F("items", len(entity.Items)),
	)
	run.Span().SetAttributes(
		attribute.String("order.status", string(entity.Status)),
		attribute.String("order.total", entity.Total.String()),
	)
	run.Span().AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", entity.ID)))

	return &OrderGraph{
		Order:      entity,
		User:       user,
		Products:   products,
		Categories: loadCategories(ctx, uc.catalog, products, run.Logger()),
	}, nil
}

// rollback runs the saga with a context detached from the caller's cancellation.
func (uc *CreateOrderUseCase) rollback(ctx context.Context, run *application.Run, sg *saga, entity *domain.Order, cause error) error {
	compCtx := context.WithoutCancel(ctx)
	compensations := uc.obs.Counter(observability.MCompensations)

	err := sg.compensate(compCtx, func(name string, stepErr error) {
		outcome := "success"
		if stepErr != nil {
			outcome = "error"
			run.Logger().Error("saga_compensation_failed",
				observability.F("order_id", entity.ID),
				observability.F("step", name),
				observability.F("error", stepErr.Error()),
			)
		}
		action, _, _ := strings.Cut(name, ":")
		compensations.Add(1,
			observability.L("use_case", useCaseOrderCreate),
			observability.L("action", action),
			observability.L("outcome", outcome),
		)
	})
	run.Span().AddEvent("order.compensated")

	if pubErr := uc.obs.Publish(compCtx, uc.publisher, domain.NewCreationFailedEvent(entity.ID, entity.UserID, cause.Error())); pubErr != nil {
		run.Add(observability.F("event_publish_error", pubErr.Error()))
	}
	return err
}

func validateCreate(cmd CreateOrderInput) error {
	if cmd.UserID == "" {
		return newValidation("user id is required")
	}
	if len(cmd.Items) == 0 {
		return domain.ErrNoItems
	}
	for i, line := range cmd.Items {
		if line.ProductID == "" {
			return newValidation(fmt.Sprintf("item %d: product id is required", i))
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("item %d: %w", i, domain.ErrInvalidQuantity)
		}
	}
	return nil
}

func lookupStatus(err error, subject string) string {
	if KindOf(err) == KindNotFound {
		return subject + "_NOT_FOUND"
	}
	return subject + "_LOOKUP_FAILED"
}
