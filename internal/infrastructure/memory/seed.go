package memory

import (
	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	product domcatalog.Product
	stock   int
}

// Matches migrations/000002_seed.up.sql.
var (
	demoCategories = []domcatalog.Category{
		{ID: "cat-electronics", Name: "Electronics"},
		{ID: "cat-books", Name: "Books"},
	}
	demoProducts = []seedProduct{
		{domcatalog.Product{ID: "prod-keyboard", Name: "Mechanical Keyboard", Price: decimal.RequireFromString("89.90"), CategoryID: "cat-electronics"}, 50},
		{domcatalog.Product{ID: "prod-mouse", Name: "Wireless Mouse", Price: decimal.RequireFromString("24.50"), CategoryID: "cat-electronics"}, 120},
		{domcatalog.Product{ID: "prod-go-book", Name: "The Go Programming Language", Price: decimal.RequireFromString("39.99"), CategoryID: "cat-books"}, 15},
		{domcatalog.Product{ID: "prod-sticker", Name: "Gopher Sticker", Price: decimal.RequireFromString("1.25")}, 1000},
	}
	demoUsers = []domuser.User{
		{ID: "user-ada", Name: "Ada Lovelace", Email: "ada@example.com"},
		{ID: "user-linus", Name: "Linus Torvalds", Email: "linus@example.com"},
	}
)

// SeedDemo fills empty stores with the demo catalog used by local runs.
func SeedDemo(catalog *CatalogRepository, users *UserRepository, ledger *Ledger) {
	for _, c := range demoCategories {
		catalog.PutCategory(c)
	}
	for _, p := range demoProducts {
		catalog.PutProduct(p.product)
		ledger.Set(p.product.ID, p.stock)
	}
	for _, u := range demoUsers {
		users.Put(u)
	}
}
