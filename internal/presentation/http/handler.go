package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	appCatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/catalog"
	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domainInventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type StockReader interface {
	CurrentStock(ctx context.Context, productID string) (int, error)
}

type Handler struct {
	orders    *appOrder.Service
	stock     StockReader
	batch     *appCatalog.BatchService
	metrics   http.Handler
	validate  *validator.Validate
	log       observability.Logger
	tel       observability.Observability
	httpCount observability.Counter
	httpDur   observability.Histogram
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
)

// NewHandler wires the HTTP surface. metrics may be nil to skip /metrics.
func NewHandler(
	orders *appOrder.Service,
	stock StockReader,
	batch *appCatalog.BatchService,
	metrics http.Handler,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Handler{
		orders:    orders,
		stock:     stock,
		batch:     batch,
		metrics:   metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:       tel,
		httpCount: m.Counter(observability.MHTTPRequests),
		httpDur:   m.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	// Trace → request logger → metrics → access log → handler
	h.handle(r, http.MethodPost, "/orders", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/orders/{orderID}", h.handleGetOrder)
	h.handle(r, http.MethodPost, "/orders/{orderID}/payment", h.handleProcessPayment)
	h.handle(r, http.MethodPost, "/orders/{orderID}/cancel", h.handleCancelOrder)
	h.handle(r, http.MethodPost, "/orders/{orderID}/cancel/resume", h.handleResumeCancel)
	h.handle(r, http.MethodGet, "/products/{productID}/stock", h.handleStock)
	h.handle(r, http.MethodPost, "/products/batch/restock", h.handleBatchRestock)
	h.handle(r, http.MethodPost, "/products/batch/prices", h.handleBatchPrices)
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func (h *Handler) handle(r chi.Router, method, pattern string, fn http.HandlerFunc) {
	route := method + " " + pattern
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerTenantID) },
		)(
			h.withHTTPMetrics(
				h.withAccessLog(fn),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

type createOrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type createOrderRequest struct {
	UserID string            `json:"userId" validate:"required"`
	Items  []createOrderItem `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items := make([]appOrder.CreateOrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, appOrder.CreateOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	resp, err := h.orders.Create(r.Context(), appOrder.CreateOrderInput{UserID: req.UserID, Items: items})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	resp, err := h.orders.Details(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.ProcessPayment(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type orderStatusResponse struct {
	OrderID string             `json:"orderId"`
	Status  domainOrder.Status `json:"status"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: o.ID, Status: o.Status})
}

func (h *Handler) handleResumeCancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.ResumeCancel(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{OrderID: o.ID, Status: o.Status})
}

type stockResponse struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	qty, err := h.stock.CurrentStock(r.Context(), productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, Stock: qty})
}

type restockItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type batchRestockRequest struct {
	Items []restockItem `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleBatchRestock(w http.ResponseWriter, r *http.Request) {
	var req batchRestockRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines := make([]appCatalog.RestockLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, appCatalog.RestockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	res, err := h.batch.Restock(r.Context(), lines)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, batchStatus(res), res)
}

type priceItem struct {
	ProductID string      `json:"productId" validate:"required"`
	Price     *decimal.Decimal `json:"price" validate:"required"`
}

type batchPricesRequest struct {
	Items []priceItem `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleBatchPrices(w http.ResponseWriter, r *http.Request) {
	var req batchPricesRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	changes := make([]appCatalog.PriceChange, 0, len(req.Items))
	for _, it := range req.Items {
		changes = append(changes, appCatalog.PriceChange{ProductID: it.ProductID, Price: *it.Price})
	}
	res, err := h.batch.UpdatePrices(r.Context(), changes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, batchStatus(res), res)
}

func batchStatus(res appCatalog.BatchResult) int {
	if res.Success {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))
		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		route := routeFromContext(r.Context())
		status := strconv.Itoa(lrw.status)
		h.httpCount.Add(1, observability.L("method", r.Method), observability.L("route", route), observability.L("status", status))
		h.httpDur.Observe(time.Since(start).Seconds(), observability.L("method", r.Method), observability.L("route", route), observability.L("status", status))
	})
}

func (h *Handler) decode(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch appOrder.KindOf(err) {
	case appOrder.KindNotFound:
		writeError(w, http.StatusNotFound, err)
	case appOrder.KindValidation:
		if errors.Is(err, domainInventory.ErrInsufficientStock) || errors.Is(err, domainOrder.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
	case appOrder.KindTransient:
		writeError(w, http.StatusBadGateway, err)
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
