package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type CatalogRepository struct {
	db DBTX
}

func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p          domain.Product
		categoryID *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, price, category_id FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &categoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find product: %w", err)
	}
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	return &p, nil
}

func (r *CatalogRepository) FindCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find category: %w", err)
	}
	return &c, nil
}

// UpdatePrice only touches products; order_items keep the price they were created with.
func (r *CatalogRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	if price.IsNegative() {
		return domain.ErrInvalidPrice
	}
	tag, err := r.db.Exec(ctx, `UPDATE products SET price = $2 WHERE id = $1`, id, price)
	if err != nil {
		return fmt.Errorf("catalog: update price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
