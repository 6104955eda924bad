package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/SofiaQuintana/products-inventory/pkg/config"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
)

// Store backends.
const (
	BackendMongo         = "mongo"
	BackendElasticsearch = "elasticsearch"
	BackendPostgres      = "postgres"
	BackendMemory        = "memory"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"4000"`

	// Product store selection
	StoreBackend string `env:"STORE_BACKEND" envDefault:"mongo"`

	// MongoDB
	MongoURI        string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB         string `env:"MONGO_DB" envDefault:"catalog"`
	MongoCollection string `env:"MONGO_COLLECTION" envDefault:"products"`

	// Elasticsearch
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_products"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"catalog"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"20"`

	// Redis query cache
	EnableRedis     bool          `env:"ENABLE_REDIS" envDefault:"false"`
	RedisHost       string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	SearchCacheTTL  time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"300s"`
	SuggestCacheTTL time.Duration `env:"SUGGEST_CACHE_TTL" envDefault:"600s"`

	// Ingestion
	CSVPath         string        `env:"CSV_PATH" envDefault:"./data/products.csv"`
	IngestBatchSize int           `env:"INGEST_BATCH_SIZE" envDefault:"10000"`
	IngestTimeout   time.Duration `env:"INGEST_TIMEOUT" envDefault:"30m"`

	// Kafka
	EnableKafka  bool     `env:"ENABLE_KAFKA" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"catalog-service"`

	// HTTP protection
	AdminJWTSecret string  `env:"ADMIN_JWT_SECRET"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// Observability
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRate    float64       `env:"OTEL_TRACES_SAMPLE_RATE" envDefault:"1"`
	EnablePprof        bool          `env:"ENABLE_PPROF" envDefault:"false"`
	PprofAllowedCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"500ms"`
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	backends := []string{BackendMongo, BackendElasticsearch, BackendPostgres, BackendMemory}
	if !slices.Contains(backends, c.StoreBackend) {
		return fmt.Errorf("invalid STORE_BACKEND %q: must be one of %v", c.StoreBackend, backends)
	}
	if c.IngestBatchSize < 1 {
		return fmt.Errorf("invalid INGEST_BATCH_SIZE: %d", c.IngestBatchSize)
	}
	if c.SearchCacheTTL <= 0 || c.SuggestCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.IngestTimeout <= 0 {
		return fmt.Errorf("invalid INGEST_TIMEOUT: %s", c.IngestTimeout)
	}
	if c.EnableKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when ENABLE_KAFKA is set")
	}
	return nil
}

// Postgres returns the connection settings for the Postgres store.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSLMode,
		MaxConns: c.PostgresMaxConns,
	}
}

// Mongo returns the connection settings for the Mongo store.
func (c *Config) Mongo() database.MongoConfig {
	return database.MongoConfig{URI: c.MongoURI, Database: c.MongoDB}
}

// Redis returns the connection settings for the query cache.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Host: c.RedisHost, Port: c.RedisPort, Password: c.RedisPassword, DB: c.RedisDB}
}
