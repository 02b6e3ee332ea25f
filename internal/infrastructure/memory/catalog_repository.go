package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

type CatalogRepository struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	categories map[string]domain.Category
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
	}
}

func (r *CatalogRepository) PutProduct(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *CatalogRepository) PutCategory(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c
}

func (r *CatalogRepository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r *CatalogRepository) FindCategory(ctx context.Context, id string) (*domain.Category, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	return &c, nil
}

func (r *CatalogRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	_ = ctx
	if price.IsNegative() {
		return domain.ErrInvalidPrice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Price = price
	r.products[id] = p
	return nil
}
