package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SofiaQuintana/products-inventory/internal/cache"
	"github.com/SofiaQuintana/products-inventory/internal/config"
	"github.com/SofiaQuintana/products-inventory/internal/event"
	handler "github.com/SofiaQuintana/products-inventory/internal/handler/http"
	"github.com/SofiaQuintana/products-inventory/internal/service"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	"github.com/SofiaQuintana/products-inventory/pkg/breaker"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
	"github.com/SofiaQuintana/products-inventory/pkg/health"
	"github.com/SofiaQuintana/products-inventory/pkg/httpclient"
	pkgkafka "github.com/SofiaQuintana/products-inventory/pkg/kafka"
	"github.com/SofiaQuintana/products-inventory/pkg/tracing"
)

// ServiceName identifies the service in logs, metrics and traces.
const ServiceName = "catalog-service"

// Version is stamped at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

const (
	setupTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	eventDedupTTL   = 24 * time.Hour
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store    store.ProductStore
	cache    cache.Cache
	producer *pkgkafka.Producer
	dlq      *pkgkafka.DLQProducer
	consumer *pkgkafka.Consumer

	httpServer     *http.Server
	stop           context.CancelFunc
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	tc := tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	}
	tracerShutdown, err := tracing.InitTracer(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	if tc.Enabled() {
		logger.Info("tracing enabled", slog.String("endpoint", tc.Endpoint), slog.Float64("sample_rate", tc.SampleRate))
	}

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		_ = st.Close(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("product store ready", slog.String("backend", cfg.StoreBackend))

	a := &App{
		cfg:            cfg,
		logger:         logger,
		store:          st,
		cache:          cache.Nop{},
		tracerShutdown: tracerShutdown,
	}

	// Query cache. An unreachable Redis degrades to uncached reads.
	var redisClient *redis.Client
	if cfg.EnableRedis {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("redis unavailable, continuing without query cache",
				slog.String("addr", cfg.Redis().Addr()),
				slog.String("error", err.Error()),
			)
		} else {
			a.cache = cache.NewRedis(redisClient, breaker.DefaultConfig("redis-cache"), logger)
			logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
		}
	}

	// Remote catalog sources are streamed, so the client has no overall
	// timeout; the ingest timeout bounds the download.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = 0
	fetcher := httpclient.NewCircuitBreakerClient(httpclient.New(clientCfg), breaker.DefaultConfig("catalog-source"), logger)

	var publisher service.CompletionPublisher
	if cfg.EnableKafka {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewPublisher(a.producer, logger)

		var dedup pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(eventDedupTTL)
		if redisClient != nil {
			dedup = pkgkafka.NewRedisIdempotencyStore(redisClient, "catalog:events:", eventDedupTTL)
		}
		consumer := event.NewConsumer(st, logger)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    event.TopicProductUpserted,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}, pkgkafka.IdempotentHandler(dedup, consumer.Handle, logger), logger).WithDLQ(a.dlq)

		logger.Info("kafka initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", event.TopicProductUpserted),
		)
	}

	searchService := service.NewSearchService(st, a.cache, cfg.SearchCacheTTL)
	suggestService := service.NewSuggestService(st, a.cache, cfg.SuggestCacheTTL)
	ingestService := service.NewIngestService(st, fetcher, publisher, service.IngestConfig{
		DefaultPath: cfg.CSVPath,
		BatchSize:   cfg.IngestBatchSize,
		Timeout:     cfg.IngestTimeout,
	}, logger)

	healthHandler := health.NewHandler()
	healthHandler.Register(cfg.StoreBackend, st.Ping)
	if redisClient != nil {
		healthHandler.Register("redis", a.cache.Ping)
	}
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}
	logger.Info("health checks registered", slog.Any("checks", healthHandler.Names()))

	baseCtx, stop := context.WithCancel(context.Background())
	a.stop = stop

	router := handler.NewRouter(baseCtx,
		handler.NewCatalogHandler(searchService, suggestService, ingestService, logger),
		healthHandler,
		handler.RouterConfig{
			ServiceName:       ServiceName,
			Version:           Version,
			AdminJWTSecret:    cfg.AdminJWTSecret,
			LoadTimeout:       cfg.IngestTimeout,
			RateLimitRPS:      cfg.RateLimitRPS,
			RateLimitBurst:    cfg.RateLimitBurst,
			SearchCacheTTL:    cfg.SearchCacheTTL,
			SuggestCacheTTL:   cfg.SuggestCacheTTL,
			EnablePprof:       cfg.EnablePprof,
			PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		},
		logger,
	)

	a.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// A synchronous load holds its response open for the whole run.
		WriteTimeout: cfg.IngestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Handler returns the HTTP handler serving the catalog API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumer, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed", slog.String("error", runErr.Error()))
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	record := func(component string, err error) {
		if err != nil {
			a.logger.Error(component+" shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	record("http server", a.httpServer.Shutdown(ctx))
	a.stop()

	if a.consumer != nil {
		record("kafka consumer", a.consumer.Close())
	}
	if a.dlq != nil {
		record("kafka dlq producer", a.dlq.Close())
	}
	if a.producer != nil {
		record("kafka producer", a.producer.Close())
	}
	record("cache", a.cache.Close())
	record("store", a.store.Close(ctx))
	record("tracer", a.tracerShutdown(ctx))

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
