package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SofiaQuintana/products-inventory/internal/config"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	esstore "github.com/SofiaQuintana/products-inventory/internal/store/elasticsearch"
	"github.com/SofiaQuintana/products-inventory/internal/store/memory"
	mongostore "github.com/SofiaQuintana/products-inventory/internal/store/mongo"
	pgstore "github.com/SofiaQuintana/products-inventory/internal/store/postgres"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
)

// OpenStore connects the product store selected by cfg.StoreBackend. It does
// not create indexes; callers run EnsureIndexes.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.ProductStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		logger.Info("connected to MongoDB",
			slog.String("database", cfg.MongoDB),
			slog.String("collection", cfg.MongoCollection),
		)
		return mongostore.New(client, cfg.MongoDB, cfg.MongoCollection, logger), nil

	case config.BackendElasticsearch:
		st, err := esstore.New(esstore.Config{URL: cfg.ElasticsearchURL, Index: cfg.ElasticsearchIndex}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch store: %w", err)
		}
		logger.Info("elasticsearch store initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
		return st, nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		return pgstore.New(pool, logger), nil

	case config.BackendMemory:
		logger.Info("in-memory product store initialized")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
