package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appCatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/catalog"
	appInventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/config"
	domcatalog "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	domuser "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/id"
	kafkarelay "github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/otelsdk"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/redisx"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-fulfillment/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-fulfillment/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type stores struct {
	users   domuser.Repository
	catalog domcatalog.Repository
	ledger  dominv.Ledger
	orders  domorder.Repository
	keys    appOrder.IdempotencyStore
	closers []func() error
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	storeCurrency, _ := cfg.Currency()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := otelsdk.Setup(ctx, otelsdk.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTel.Endpoint,
		Insecure:       cfg.OTel.Insecure,
	})
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}

	logOpts := []logging.Option{logging.WithLevel(cfg.LogLevel)}
	if cfg.OTel.Endpoint != "" {
		logOpts = append(logOpts, logging.WithOTelBridge(cfg.ServiceName))
	}
	baseLogger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, logOpts...)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			systemLogger.Error("otel_shutdown_error", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	logger := zaplogger.New(baseLogger)
	tel := infraobs.New(
		infraobs.WithTracer(oteltrace.New(cfg.ServiceName)),
		infraobs.WithLogger(logger),
		infraobs.WithInstruments(prometrics.Standard(prometrics.New(registry, "", ""))),
	)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for i := len(st.closers) - 1; i >= 0; i-- {
			_ = st.closers[i]()
		}
	}()

	bus := outbox.NewBus(logger, outbox.WithMiddleware(workerpresentation.Middleware(tel)))

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkarelay.NewProducer(kafkarelay.WriterConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.ServiceName,
		}, otel.GetTracerProvider())
		if err != nil {
			return err
		}
		relay := kafkarelay.NewRelay(producer, relayedEvents(), tel)
		relay.Start(bus)
		defer func() { _ = relay.Close() }()
	}

	inventoryService := appInventory.NewService(st.ledger, bus, tel)
	ids := id.NewUUIDGenerator()

	var gateway dompay.Gateway = payment.NewSimulatedGateway(
		payment.WithFailureProbability(cfg.Payment.FailureProbability),
		payment.WithLatency(cfg.Payment.Latency),
	)
	if cfg.Payment.Breaker {
		gateway = payment.NewBreakerGateway(gateway, payment.DefaultBreakerConfig(), logger)
	}

	payUC := appOrder.NewProcessPaymentUseCase(st.orders, gateway, storeCurrency, bus, tel,
		appOrder.WithRetryPolicy(appOrder.RetryPolicy{
			MaxAttempts: cfg.Payment.MaxAttempts,
			BaseDelay:   cfg.Payment.BaseDelay,
		}),
	)
	orderService := appOrder.NewService(
		appOrder.NewCreateOrderUseCase(st.orders, st.users, st.catalog, inventoryService, ids, bus, tel),
		payUC,
		appOrder.NewCancelOrderUseCase(st.orders, inventoryService, st.keys, bus, tel),
		appOrder.NewGetOrderDetailsUseCase(st.orders, st.users, st.catalog, tel),
	)
	if cfg.Payment.AutoPayment {
		appOrder.NewPaymentWorker(bus, payUC, tel).Start()
	}
	batchService := appCatalog.NewBatchService(st.catalog, inventoryService, tel)

	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := bus.Stop(stopCtx); err != nil {
			systemLogger.Warn("event_bus_stop_error", zap.Error(err))
		}
	}()

	handler := httppresentation.NewHandler(orderService, inventoryService, batchService,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), tel)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.Storage),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", zap.Error(err))
		return err
	}
	systemLogger.Info("http_server_stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, logger observability.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Storage {
	case config.StoragePostgres:
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
				return nil, err
			}
		}
		pc := postgres.DefaultPoolConfig()
		pc.MaxConns = cfg.Postgres.MaxConns
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL, pc)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() error { pool.Close(); return nil })
		st.users = postgres.NewUserRepository(pool)
		st.catalog = postgres.NewCatalogRepository(pool)
		st.ledger = postgres.NewLedger(pool)
		st.orders = postgres.NewOrderRepository(pool)
	default:
		users, catalog, ledger := memory.NewUserRepository(), memory.NewCatalogRepository(), memory.NewLedger()
		memory.SeedDemo(catalog, users, ledger)
		st.users, st.catalog, st.ledger = users, catalog, ledger
		st.orders = memory.NewOrderRepository()
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redisx.New(ctx, cfg.Redis.Addr)
		if err != nil {
			for _, c := range st.closers {
				_ = c()
			}
			return nil, err
		}
		st.closers = append(st.closers, rdb.Close)
		st.keys = redisx.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		st.catalog = redisx.NewCachedCatalog(st.catalog, rdb, cfg.Redis.ProductTTL, logger)
	} else {
		st.keys = memory.NewIdempotencyStore(cfg.Redis.IdempotencyTTL)
	}
	return st, nil
}

func relayedEvents() []string {
	return []string{
		domorder.CreatedEvent{}.EventName(),
		domorder.ConfirmedEvent{}.EventName(),
		domorder.CancelledEvent{}.EventName(),
		domorder.CreationFailedEvent{}.EventName(),
		dominv.StockReservedEvent{}.EventName(),
		dominv.StockRestockedEvent{}.EventName(),
	}
}
