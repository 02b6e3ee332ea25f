package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrCategoryNotFound = errors.New("catalog: category not found")
	ErrInvalidPrice     = errors.New("catalog: price must be zero or greater")
)

type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	CategoryID string
}

type Category struct {
	ID   string
	Name string
}

type Repository interface {
	FindProduct(ctx context.Context, id string) (*Product, error)
	FindCategory(ctx context.Context, id string) (*Category, error)
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error
}
