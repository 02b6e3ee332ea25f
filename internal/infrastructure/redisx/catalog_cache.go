package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CachedCatalog serves product lookups from Redis and falls through to next on
// miss. Cache failures are logged and never fail the lookup.
type CachedCatalog struct {
	next domain.Repository
	rdb  redis.Cmdable
	ttl  time.Duration
	log  observability.Logger
}

func NewCachedCatalog(next domain.Repository, rdb redis.Cmdable, ttl time.Duration, logger observability.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CachedCatalog{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  logger.With(observability.F("component", "catalog_cache")),
	}
}

type cachedProduct struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID string          `json:"categoryId,omitempty"`
}

func (c *CachedCatalog) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	key := fmt.Sprintf(KeyProduct, id)

	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p cachedProduct
		if jsonErr := json.Unmarshal(val, &p); jsonErr == nil {
			return &domain.Product{ID: p.ID, Name: p.Name, Price: p.Price, CategoryID: p.CategoryID}, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache_get_failed", observability.F("key", key), observability.F("error", err))
	}

	product, err := c.next.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cachedProduct{
		ID:         product.ID,
		Name:       product.Name,
		Price:      product.Price,
		CategoryID: product.CategoryID,
	})
	if err == nil {
		if setErr := c.rdb.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.log.Warn("cache_set_failed", observability.F("key", key), observability.F("error", setErr))
		}
	}
	return product, nil
}

func (c *CachedCatalog) FindCategory(ctx context.Context, id string) (*domain.Category, error) {
	return c.next.FindCategory(ctx, id)
}

// UpdatePrice writes through and drops the cached entry so the next order sees the new price.
func (c *CachedCatalog) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	if err := c.next.UpdatePrice(ctx, id, price); err != nil {
		return err
	}
	key := fmt.Sprintf(KeyProduct, id)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Warn("cache_invalidate_failed", observability.F("key", key), observability.F("error", err))
	}
	return nil
}
