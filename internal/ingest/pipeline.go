package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
	"github.com/SofiaQuintana/products-inventory/pkg/tracing"
)

// DefaultBatchSize is the number of records buffered before a flush.
const DefaultBatchSize = 10000

// Sink applies a batch of products. store.ProductStore satisfies it.
type Sink interface {
	BulkUpsert(ctx context.Context, products []domain.Product) (store.UpsertResult, error)
}

// Pipeline reads rows, normalizes them and upserts them in batches. A batch
// is dispatched synchronously, so no row is read while a batch is in
// flight and at most one batch is held in memory.
type Pipeline struct {
	sink      Sink
	batchSize int
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPipeline creates a pipeline. A non-positive batchSize uses DefaultBatchSize.
func NewPipeline(sink Sink, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		sink:      sink,
		batchSize: batchSize,
		tracer:    tracing.Tracer("catalog/ingest"),
		now:       time.Now,
	}
}

// Run drains src into the sink. Rows that fail normalization and batches
// that fail to apply are counted as errors and the run continues. Reading
// from src failing, or ctx ending, aborts the run; the stats gathered so far
// are returned with the error.
func (p *Pipeline) Run(ctx context.Context, src RowSource) (domain.IngestionStats, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.run")
	defer span.End()

	log := logger.FromContext(ctx)
	start := p.now()
	var stats domain.IngestionStats
	finish := func(err error) (domain.IngestionStats, error) {
		stats.Duration = p.now().Sub(start)
		span.SetAttributes(
			attribute.Int64("ingest.processed", stats.TotalProcessed),
			attribute.Int64("ingest.errors", stats.Errors),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return stats, err
	}

	batch := make([]domain.Product, 0, p.batchSize)
	var invalid int64
	for {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("ingest aborted: %w", err))
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrMalformedRow) {
				stats.Errors++
				invalid++
				rowsTotal.WithLabelValues("error").Inc()
				continue
			}
			return finish(fmt.Errorf("read source: %w", err))
		}

		product, err := Normalize(row)
		if err != nil {
			stats.Errors++
			invalid++
			rowsTotal.WithLabelValues("error").Inc()
			continue
		}

		stats.TotalProcessed++
		batch = append(batch, product)
		if len(batch) >= p.batchSize {
			full := batch
			batch = make([]domain.Product, 0, p.batchSize)
			p.flush(ctx, full, &stats, start)
		}
	}

	if len(batch) > 0 {
		p.flush(ctx, batch, &stats, start)
	}
	if invalid > 0 {
		log.WarnContext(ctx, "rows rejected", slog.Int64("count", invalid))
	}
	return finish(nil)
}

// flush applies one batch and folds its outcome into stats.
func (p *Pipeline) flush(ctx context.Context, batch []domain.Product, stats *domain.IngestionStats, start time.Time) {
	stats.Batches++
	ctx, span := p.tracer.Start(ctx, "ingest.batch", trace.WithAttributes(
		attribute.Int("ingest.batch", stats.Batches),
		attribute.Int("ingest.batch_size", len(batch)),
	))
	defer span.End()

	log := logger.FromContext(ctx)
	began := p.now()
	res, err := p.sink.BulkUpsert(ctx, batch)
	batchDuration.Observe(p.now().Sub(began).Seconds())

	// Counts are only trusted alongside success or a partial failure; any
	// other error fails the whole batch.
	partial := errors.Is(err, store.ErrPartialBatch)
	if err == nil || partial {
		stats.Inserted += res.Inserted
		stats.Updated += res.Updated
		rowsTotal.WithLabelValues("inserted").Add(float64(res.Inserted))
		rowsTotal.WithLabelValues("updated").Add(float64(res.Updated))
	}

	if err != nil {
		failed := int64(len(batch))
		result := "failed"
		if partial {
			failed = res.Failed
			result = "partial"
		}
		stats.Errors += failed
		rowsTotal.WithLabelValues("error").Add(float64(failed))
		batchesTotal.WithLabelValues(result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WarnContext(ctx, "batch upsert failed",
			slog.Int("batch", stats.Batches),
			slog.Int("records", len(batch)),
			slog.Int64("failed", failed),
			slog.String("error", err.Error()),
		)
		return
	}

	batchesTotal.WithLabelValues("ok").Inc()
	running := domain.IngestionStats{TotalProcessed: stats.Inserted + stats.Updated, Duration: p.now().Sub(start)}
	log.InfoContext(ctx, "batch upserted",
		slog.Int("batch", stats.Batches),
		slog.Int64("inserted", res.Inserted),
		slog.Int64("updated", res.Updated),
		slog.Int64("total", running.TotalProcessed),
		slog.Int64("docs_per_second", running.DocsPerSecond()),
	)
}
