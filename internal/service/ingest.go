package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/ingest"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
)

var (
	ingestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_ingest_runs_total",
			Help: "Ingestion runs by result (ok, failed)",
		},
		[]string{"result"},
	)

	ingestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_ingest_run_duration_seconds",
			Help:    "Wall-clock duration of ingestion runs",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

// CompletionPublisher announces finished ingestion runs.
type CompletionPublisher interface {
	PublishIngestionCompleted(ctx context.Context, stats domain.IngestionStats) error
}

// IngestConfig configures IngestService.
type IngestConfig struct {
	// DefaultPath is loaded when a request names no source.
	DefaultPath string
	BatchSize   int
	// Timeout bounds one run. 0 means no limit beyond the caller's context.
	Timeout time.Duration
	// WorkDir resolves relative paths. Empty uses the process working directory.
	WorkDir string
}

// IngestService loads catalog sources into the store.
type IngestService struct {
	sink      ingest.Sink
	fetcher   ingest.Fetcher
	publisher CompletionPublisher
	cfg       IngestConfig
	logger    *slog.Logger
}

// NewIngestService creates an ingestion service. fetcher and publisher may
// be nil, which disables remote sources and completion events.
func NewIngestService(sink ingest.Sink, fetcher ingest.Fetcher, publisher CompletionPublisher, cfg IngestConfig, logger *slog.Logger) *IngestService {
	return &IngestService{
		sink:      sink,
		fetcher:   fetcher,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// ResolvePath picks the source to load: path, or the default when empty.
// Relative file paths are made absolute; URLs are returned unchanged.
func (s *IngestService) ResolvePath(path string) (string, error) {
	if path == "" {
		path = s.cfg.DefaultPath
	}
	if u, err := url.Parse(path); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return path, nil
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	dir := s.cfg.WorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		dir = wd
	}
	return filepath.Join(dir, path), nil
}

// Load runs one ingestion of path. Only an unopenable or unreadable source
// (or the run timing out) fails the run; bad rows and failed batches are
// counted in the returned stats.
func (s *IngestService) Load(ctx context.Context, path string) (domain.IngestionStats, error) {
	location, err := s.ResolvePath(path)
	if err != nil {
		return domain.IngestionStats{}, err
	}

	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.WithContext(ctx, s.logger).With(slog.String("source", location))
	ctx = logger.NewContext(ctx, log)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log.InfoContext(ctx, "ingestion started", slog.Int("batch_size", s.cfg.BatchSize))

	src, err := ingest.OpenSource(ctx, location, s.fetcher)
	if err != nil {
		ingestRuns.WithLabelValues("failed").Inc()
		log.ErrorContext(ctx, "ingestion source unavailable", slog.String("error", err.Error()))
		return domain.IngestionStats{RunID: runID, Source: location}, err
	}
	defer func() { _ = src.Close() }()

	stats, err := ingest.NewPipeline(s.sink, s.cfg.BatchSize).Run(ctx, src)
	stats.RunID = runID
	stats.Source = location
	ingestRunDuration.Observe(stats.Duration.Seconds())
	if err != nil {
		ingestRuns.WithLabelValues("failed").Inc()
		log.ErrorContext(ctx, "ingestion failed",
			slog.Int64("processed", stats.TotalProcessed),
			slog.String("error", err.Error()),
		)
		return stats, fmt.Errorf("load %s: %w", location, err)
	}
	ingestRuns.WithLabelValues("ok").Inc()

	log.InfoContext(ctx, "ingestion completed",
		slog.Int64("total_processed", stats.TotalProcessed),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("updated", stats.Updated),
		slog.Int64("errors", stats.Errors),
		slog.Int64("duration_ms", stats.DurationMs()),
		slog.Int64("docs_per_second", stats.DocsPerSecond()),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishIngestionCompleted(ctx, stats); err != nil {
			log.WarnContext(ctx, "failed to publish ingestion completed event", slog.String("error", err.Error()))
		}
	}
	return stats, nil
}
