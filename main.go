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

	appcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/config"
	domcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/mongodb"
	infraobs "github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/rediscache"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-marketplace/app/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-marketplace/app/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	oteltrace.InstallPropagator()
	counters, histograms := infraobs.Instruments(prometrics.New("", "", nil))
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		counters,
		histograms,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, tel, systemLogger); err != nil {
		systemLogger.Error("service_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

// stack is everything run opens and must close on the way out.
type stack struct {
	catalog catalog.Store
	orders  domorder.Repository
	carts   domcart.Repository
	checks  map[string]httppresentation.HealthCheck
	closers []func(context.Context) error
}

func (s *stack) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

func (s *stack) close(ctx context.Context, logger *zap.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("shutdown_close_failed", zap.Error(err))
		}
	}
}

func run(ctx context.Context, cfg *config.Config, tel observability.Observability, systemLogger *zap.Logger) error {
	st := &stack{checks: map[string]httppresentation.HealthCheck{}}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		st.close(closeCtx, systemLogger)
	}()

	if err := openStorage(ctx, cfg, st, tel); err != nil {
		return err
	}
	systemLogger.Info("storage_ready",
		zap.String("storage", cfg.Storage),
		zap.Bool("mongo_carts", cfg.MongoURI != ""),
		zap.Bool("redis_cart_cache", cfg.RedisAddr != ""),
	)

	// In-memory event bus (outbox) between use cases and the broker relay
	bus := outbox.NewBus(tel.Logger(), outbox.Options{
		QueueSize:      1024,
		Concurrency:    8,
		HandlerTimeout: 5 * time.Second,
	})
	bus.Start(context.Background())
	st.onClose(func(ctx context.Context) error {
		bus.Stop(ctx)
		return nil
	})

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := kafka.NewProducer(kafka.NewWriter(brokers, cfg.KafkaTopic), cfg.KafkaTopic, kafka.BreakerSettings{}, tel)
		st.onClose(func(context.Context) error { return producer.Close() })
		st.checks["kafka"] = func(context.Context) error {
			if s := producer.State(); s == "open" {
				return fmt.Errorf("circuit breaker %s", s)
			}
			return nil
		}
		subscriber := workerpresentation.NewSubscriber(bus, "order-events-relay", tel)
		apporder.NewWorker(subscriber, producer, tel).Start()
		systemLogger.Info("event_relay_start", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Cart: appcart.NewService(st.carts, st.catalog, tel),
		Checkout: checkout.NewUseCase(st.carts, st.catalog, st.orders, domorder.NewNumberGenerator(), bus, checkout.Config{
			Pricing: domorder.Pricing{
				DeliveryFee: cfg.DeliveryFee,
				TaxRate:     cfg.TaxRate,
			},
			MaxNumberAttempts: cfg.OrderNumberAttempts,
		}, tel),
		Transition:     apporder.NewTransitionUseCase(st.orders, st.catalog, bus, tel),
		Orders:         apporder.NewQueryService(st.orders, tel),
		ConfirmPayment: apppayment.NewConfirmUseCase(st.orders, bus, tel),
		RefundPayment:  apppayment.NewRefundUseCase(st.orders, bus, tel),
		Metrics:        promhttp.Handler(),
		HealthChecks:   st.checks,
		RequestTimeout: cfg.RequestTimeout,
	}, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	return nil
}

// openStorage picks the catalog and order stores, then layers the cart store:
// Mongo when configured, otherwise memory, fronted by Redis when configured.
func openStorage(ctx context.Context, cfg *config.Config, st *stack, tel observability.Observability) error {
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		st.onClose(func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(pool); err != nil {
			return err
		}
		store := postgres.NewCatalogStore(pool)
		if cfg.CatalogSeedFile != "" {
			products, err := memory.ReadCatalogFile(cfg.CatalogSeedFile)
			if err != nil {
				return err
			}
			for _, p := range products {
				if err := store.Put(ctx, p); err != nil {
					return fmt.Errorf("catalog seed: %w", err)
				}
			}
		}
		st.catalog = store
		st.orders = postgres.NewOrderRepository(pool)
		st.checks["postgres"] = pool.Ping
	default:
		store := memory.NewCatalogStore()
		if cfg.CatalogSeedFile != "" {
			var err error
			if store, err = memory.LoadCatalogFile(cfg.CatalogSeedFile); err != nil {
				return err
			}
		}
		st.catalog = store
		st.orders = memory.NewOrderRepository()
	}

	st.carts = memory.NewCartRepository()
	if cfg.MongoURI != "" {
		db, err := mongodb.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		st.onClose(func(ctx context.Context) error { return db.Client().Disconnect(ctx) })
		carts := mongodb.NewCartRepository(db)
		if err := carts.CreateIndexes(ctx); err != nil {
			return err
		}
		st.carts = carts
		st.checks["mongodb"] = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		st.onClose(func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		st.carts = rediscache.NewCartRepository(st.carts, rediscache.NewCartCache(client, cfg.CartCacheTTL), tel.Logger())
		st.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return nil
}
