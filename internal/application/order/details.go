package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderDetails = "order.details"

type GetOrderDetailsInput struct {
	OrderID string
}

type GetOrderDetailsUseCase struct {
	repo    domain.Repository
	users   domuser.Repository
	catalog domcatalog.Repository
	obs     application.Instruments
}

func NewGetOrderDetailsUseCase(
	repo domain.Repository,
	users domuser.Repository,
	catalog domcatalog.Repository,
	tel observability.Observability,
) *GetOrderDetailsUseCase {
	return &GetOrderDetailsUseCase{
		repo:    repo,
		users:   users,
		catalog: catalog,
		obs:     application.NewInstruments(tel, orderService),
	}
}

func (uc *GetOrderDetailsUseCase) Execute(ctx context.Context, in GetOrderDetailsInput) (_ OrderFullDetailsResponse, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseOrderDetails, "GetOrderDetails", attribute.String("order.id", in.OrderID))
	run.Add(observability.F("order_id", in.OrderID))
	defer func() { run.End(err) }()

	entity, err := uc.repo.Get(ctx, in.OrderID)
	if err != nil {
		run.Fail(lookupStatus(err, "ORDER"))
		return OrderFullDetailsResponse{}, wrapRepositoryError(err)
	}

	user, err := uc.users.FindByID(ctx, entity.UserID)
	if err != nil {
		run.Fail(lookupStatus(err, "USER"))
		return OrderFullDetailsResponse{}, fmt.Errorf("order: resolve user %s: %w", entity.UserID, err)
	}

	products := make(map[string]*domcatalog.Product, len(entity.Items))
	for _, it := range entity.Items {
		if _, seen := products[it.ProductID]; seen {
			continue
		}
		p, lookupErr := uc.catalog.FindProduct(ctx, it.ProductID)
		if lookupErr != nil {
			run.Fail(lookupStatus(lookupErr, "PRODUCT"))
			return OrderFullDetailsResponse{}, fmt.Errorf("order: resolve product %s: %w", it.ProductID, lookupErr)
		}
		products[p.ID] = p
	}

	return Project(OrderGraph{
		Order:      entity,
		User:       user,
		Products:   products,
		Categories: loadCategories(ctx, uc.catalog, products, run.Logger()),
	}), nil
}
