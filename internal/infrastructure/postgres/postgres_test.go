package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appInventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/postgres"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type postgresSuite struct {
	suite.Suite

	container testcontainers.Container
	pool      *pgxpool.Pool

	ledger  *postgres.Ledger
	catalog *postgres.CatalogRepository
	users   *postgres.UserRepository
	orders  *postgres.OrderRepository
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(postgresSuite))
}

func (suite *postgresSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)
	suite.container, connStr, err = startPostgres(ctx)
	suite.Require().NoError(err)

	suite.Require().NoError(postgres.Migrate(connStr))
	// a second run finds nothing to do
	suite.Require().NoError(postgres.Migrate(connStr))

	suite.pool, err = postgres.Connect(ctx, connStr, postgres.DefaultPoolConfig())
	suite.Require().NoError(err)

	suite.ledger = postgres.NewLedger(suite.pool)
	suite.catalog = postgres.NewCatalogRepository(suite.pool)
	suite.users = postgres.NewUserRepository(suite.pool)
	suite.orders = postgres.NewOrderRepository(suite.pool)
}

func (suite *postgresSuite) TearDownSuite() {
	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(context.Background()))
	}
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("fulfillment"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", err
	}
	return container, connStr, nil
}

// insertProduct adds a product with its own stock so tests do not share counters.
func (suite *postgresSuite) insertProduct(stock int) domcatalog.Product {
	p := domcatalog.Product{
		ID:         gofakeit.UUID(),
		Name:       gofakeit.ProductName(),
		Price:      decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		CategoryID: "cat-books",
	}
	_, err := suite.pool.Exec(suite.T().Context(),
		`INSERT INTO products (id, name, price, stock, category_id) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Price, stock, p.CategoryID)
	suite.Require().NoError(err)
	return p
}

func (suite *postgresSuite) TestSeedData() {
	t := suite.T()
	ctx := t.Context()

	keyboard, err := suite.catalog.FindProduct(ctx, "prod-keyboard")
	require.NoError(t, err)
	assert.Equal(t, "cat-electronics", keyboard.CategoryID)
	assert.True(t, decimal.RequireFromString("89.90").Equal(keyboard.Price))

	sticker, err := suite.catalog.FindProduct(ctx, "prod-sticker")
	require.NoError(t, err)
	assert.Empty(t, sticker.CategoryID)

	cat, err := suite.catalog.FindCategory(ctx, "cat-books")
	require.NoError(t, err)
	assert.Equal(t, "Books", cat.Name)

	ada, err := suite.users.FindByID(ctx, "user-ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", ada.Email)

	_, err = suite.users.FindByID(ctx, "user-ghost")
	assert.ErrorIs(t, err, domuser.ErrNotFound)
	_, err = suite.catalog.FindProduct(ctx, "prod-ghost")
	assert.ErrorIs(t, err, domcatalog.ErrProductNotFound)
	_, err = suite.catalog.FindCategory(ctx, "cat-ghost")
	assert.ErrorIs(t, err, domcatalog.ErrCategoryNotFound)
}

func (suite *postgresSuite) TestLedgerReserve() {
	tests := []struct {
		name      string
		stock     int
		reserve   int
		wantStock int
		wantError error
	}{
		{name: "partial reservation: ok", stock: 10, reserve: 3, wantStock: 7},
		{name: "exact reservation: ok", stock: 4, reserve: 4, wantStock: 0},
		{name: "over reservation: insufficient", stock: 2, reserve: 3, wantStock: 2, wantError: dominv.ErrInsufficientStock},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()
			p := suite.insertProduct(tt.stock)

			err := suite.ledger.Reserve(ctx, p.ID, tt.reserve)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)
			}

			got, err := suite.ledger.CurrentStock(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, got)
		})
	}

	suite.Run("unknown product: not found", func() {
		t := suite.T()
		assert.ErrorIs(t, suite.ledger.Reserve(t.Context(), gofakeit.UUID(), 1), dominv.ErrNotFound)
		assert.ErrorIs(t, suite.ledger.Restock(t.Context(), gofakeit.UUID(), 1), dominv.ErrNotFound)
	})
}

func (suite *postgresSuite) TestLedgerConcurrentReservations() {
	t := suite.T()
	ctx := t.Context()
	p := suite.insertProduct(15)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := suite.ledger.Reserve(ctx, p.ID, 1); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	got, err := suite.ledger.CurrentStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), succeeded.Load())
	assert.Equal(t, 0, got)
}

func (suite *postgresSuite) TestOrderRoundTrip() {
	t := suite.T()
	ctx := t.Context()
	p1, p2 := suite.insertProduct(5), suite.insertProduct(5)

	o := domorder.New(gofakeit.UUID(), "user-linus")
	require.NoError(t, suite.orders.Insert(ctx, o))
	assert.ErrorIs(t, suite.orders.Insert(ctx, o), domorder.ErrConflict)

	_, err := o.AttachItem(gofakeit.UUID(), p1.ID, 2, p1.Price)
	require.NoError(t, err)
	_, err = o.AttachItem(gofakeit.UUID(), p2.ID, 1, p2.Price)
	require.NoError(t, err)
	require.NoError(t, suite.orders.Update(ctx, o))

	cancelled := o.Clone()
	require.NoError(t, cancelled.Cancel())
	require.NoError(t, o.Confirm())
	require.NoError(t, suite.orders.Update(ctx, o))
	assert.ErrorIs(t, suite.orders.Update(ctx, cancelled), domorder.ErrInvalidTransition)

	got, err := suite.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assertOrder(t, o, got)

	require.NoError(t, suite.orders.Delete(ctx, o.ID))
	_, err = suite.orders.Get(ctx, o.ID)
	assert.ErrorIs(t, err, domorder.ErrNotFound)
	assert.ErrorIs(t, suite.orders.Update(ctx, o), domorder.ErrNotFound)
}

func (suite *postgresSuite) TestPriceUpdateKeepsOrderSnapshot() {
	t := suite.T()
	ctx := t.Context()
	p := suite.insertProduct(5)

	o := domorder.New(gofakeit.UUID(), "user-ada")
	require.NoError(t, suite.orders.Insert(ctx, o))
	_, err := o.AttachItem(gofakeit.UUID(), p.ID, 1, p.Price)
	require.NoError(t, err)
	require.NoError(t, suite.orders.Update(ctx, o))

	require.NoError(t, suite.catalog.UpdatePrice(ctx, p.ID, p.Price.Add(decimal.NewFromInt(10))))
	assert.ErrorIs(t, suite.catalog.UpdatePrice(ctx, gofakeit.UUID(), decimal.NewFromInt(1)), domcatalog.ErrProductNotFound)

	got, err := suite.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(got.Items[0].Price))
}

func (suite *postgresSuite) TestCreateAndCancelWorkflow() {
	t := suite.T()
	ctx := t.Context()
	p1, p2 := suite.insertProduct(3), suite.insertProduct(1)

	inventory := appInventory.NewService(suite.ledger, nil, nil)
	create := appOrder.NewCreateOrderUseCase(suite.orders, suite.users, suite.catalog, inventory, id.NewUUIDGenerator(), nil, nil)

	_, err := create.Execute(ctx, appOrder.CreateOrderInput{
		UserID: "user-ada",
		Items: []appOrder.CreateOrderItem{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 2},
		},
	})
	var stockErr *appOrder.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, p2.ID, stockErr.ProductID)
	stock, err := suite.ledger.CurrentStock(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock, "compensation restored the first line")

	g, err := create.Execute(ctx, appOrder.CreateOrderInput{
		UserID: "user-ada",
		Items:  []appOrder.CreateOrderItem{{ProductID: p1.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	cancel := appOrder.NewCancelOrderUseCase(suite.orders, inventory, nil, nil, nil)
	_, err = cancel.Execute(ctx, appOrder.CancelOrderInput{OrderID: g.Order.ID})
	require.NoError(t, err)

	stock, err = suite.ledger.CurrentStock(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	stored, err := suite.orders.Get(ctx, g.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, stored.Status)
}

func assertOrder(t *testing.T, expected, actual *domorder.Order) {
	t.Helper()

	opts := cmp.Options{
		cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) }),
		cmpopts.EquateApproxTime(time.Millisecond),
		cmpopts.EquateEmpty(),
	}
	assert.Empty(t, cmp.Diff(expected, actual, opts))
}
