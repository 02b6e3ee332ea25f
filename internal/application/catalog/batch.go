package catalog

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService        = "catalog-service"
	useCaseBatchRestock   = "catalog.batch_restock"
	useCaseBatchPriceEdit = "catalog.batch_prices"
)

type StockRestocker interface {
	Restock(ctx context.Context, orderID, productID string, quantity int, reason string) error
}

type RestockLine struct {
	ProductID string
	Quantity  int
}

type PriceChange struct {
	ProductID string
	Price     decimal.Decimal
}

type BatchError struct {
	ProductID string `json:"productId"`
	Error     string `json:"error"`
}

// BatchResult reports per-line outcomes. One failed line never stops the rest.
type BatchResult struct {
	Success   bool         `json:"success"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors,omitempty"`
}

func (r *BatchResult) record(productID string, err error) {
	if err == nil {
		r.Processed++
		return
	}
	r.Failed++
	r.Errors = append(r.Errors, BatchError{ProductID: productID, Error: err.Error()})
}

type BatchService struct {
	products  domcatalog.Repository
	inventory StockRestocker
	obs       application.Instruments
}

func NewBatchService(products domcatalog.Repository, inventory StockRestocker, tel observability.Observability) *BatchService {
	return &BatchService{
		products:  products,
		inventory: inventory,
		obs:       application.NewInstruments(tel, catalogService),
	}
}

func (s *BatchService) Restock(ctx context.Context, lines []RestockLine) (_ BatchResult, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseBatchRestock, "BatchRestock", attribute.Int("batch.lines", len(lines)))
	defer func() { run.End(err) }()

	var res BatchResult
	for _, line := range lines {
		var lineErr error
		if line.ProductID == "" {
			lineErr = fmt.Errorf("product id is required")
		} else {
			lineErr = s.inventory.Restock(ctx, "", line.ProductID, line.Quantity, dominv.RestockReasonMaintenance)
		}
		res.record(line.ProductID, lineErr)
	}
	return s.finish(run, res), nil
}

// UpdatePrices changes catalog prices only; items already on orders keep their snapshot.
func (s *BatchService) UpdatePrices(ctx context.Context, changes []PriceChange) (_ BatchResult, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseBatchPriceEdit, "BatchUpdatePrices", attribute.Int("batch.lines", len(changes)))
	defer func() { run.End(err) }()

	var res BatchResult
	for _, c := range changes {
		var lineErr error
		switch {
		case c.ProductID == "":
			lineErr = fmt.Errorf("product id is required")
		case c.Price.IsNegative():
			lineErr = domcatalog.ErrInvalidPrice
		default:
			lineErr = s.products.UpdatePrice(ctx, c.ProductID, c.Price)
		}
		res.record(c.ProductID, lineErr)
	}
	return s.finish(run, res), nil
}

func (s *BatchService) finish(run *application.Run, res BatchResult) BatchResult {
	res.Success = res.Failed == 0
	if !res.Success {
		run.SetStatus("PARTIAL_FAILURE")
	}
	run.Add(
		observability.F("processed", res.Processed),
		observability.F("failed", res.Failed),
	)
	return res
}
