package order

import (
	"context"
	"errors"
	"time"

	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// OrderGraph is everything Project needs, keyed by id.
type OrderGraph struct {
	Order      *domain.Order
	User       *domuser.User
	Products   map[string]*domcatalog.Product
	Categories map[string]*domcatalog.Category
}

type OrderFullDetailsResponse struct {
	ID        string             `json:"id"`
	Status    domain.Status      `json:"status"`
	Total     decimal.Decimal    `json:"total"`
	UserID    string             `json:"userId"`
	CreatedAt time.Time          `json:"createdAt"`
	User      UserSummary        `json:"user"`
	Items     []OrderItemDetails `json:"items"`
}

type UserSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	LatestOrder OrderSummary `json:"latestOrder"`
}

// OrderSummary carries no user or items, so the tree stays finite.
type OrderSummary struct {
	ID        string          `json:"id"`
	Status    domain.Status   `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

type OrderItemDetails struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   ProductSummary  `json:"product"`
}

type ProductSummary struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Price    decimal.Decimal  `json:"price"`
	Category *CategorySummary `json:"category,omitempty"`
}

type CategorySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project flattens g into a tree with no back references. Item prices are the
// snapshots stored on the order; product prices are the current catalog price.
func Project(g OrderGraph) OrderFullDetailsResponse {
	o := g.Order
	summary := OrderSummary{ID: o.ID, Status: o.Status, Total: o.Total, CreatedAt: o.CreatedAt}

	resp := OrderFullDetailsResponse{
		ID:        o.ID,
		Status:    o.Status,
		Total:     o.Total,
		UserID:    o.UserID,
		CreatedAt: o.CreatedAt,
		User:      UserSummary{ID: o.UserID, LatestOrder: summary},
	}
	if g.User != nil {
		resp.User.Name = g.User.Name
		resp.User.Email = g.User.Email
	}

	resp.Items = lo.Map(o.Items, func(it domain.Item, _ int) OrderItemDetails {
		return OrderItemDetails{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Product:   projectProduct(it.ProductID, g.Products, g.Categories),
		}
	})
	return resp
}

func projectProduct(id string, products map[string]*domcatalog.Product, categories map[string]*domcatalog.Category) ProductSummary {
	p, ok := products[id]
	if !ok || p == nil {
		return ProductSummary{ID: id}
	}
	out := ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price}
	if c, ok := categories[p.CategoryID]; ok && c != nil {
		out.Category = &CategorySummary{ID: c.ID, Name: c.Name}
	}
	return out
}

// loadCategories resolves each distinct category once. Missing categories are left out.
func loadCategories(ctx context.Context, catalog domcatalog.Repository, products map[string]*domcatalog.Product, logger observability.Logger) map[string]*domcatalog.Category {
	ids := lo.Uniq(lo.FilterMap(lo.Values(products), func(p *domcatalog.Product, _ int) (string, bool) {
		return p.CategoryID, p.CategoryID != ""
	}))
	out := make(map[string]*domcatalog.Category, len(ids))
	for _, id := range ids {
		c, err := catalog.FindCategory(ctx, id)
		if err != nil {
			if !errors.Is(err, domcatalog.ErrCategoryNotFound) {
				logger.Warn("category_lookup_failed",
					observability.F("category_id", id),
					observability.F("error", err.Error()),
				)
			}
			continue
		}
		out[id] = c
	}
	return out
}
