package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	pkgkafka "github.com/SofiaQuintana/products-inventory/pkg/kafka"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
)

const (
	// AggregateTypeIngestion identifies ingestion run events.
	AggregateTypeIngestion = "ingestion"
	// SourceCatalogService is stamped on every event this service emits.
	SourceCatalogService = "catalog-service"
)

// EventPublisher is the subset of *pkgkafka.Producer used here.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// IngestionCompletedData is the payload of an ingestion.completed event.
type IngestionCompletedData struct {
	RunID          string `json:"run_id"`
	Source         string `json:"source"`
	Inserted       int64  `json:"inserted"`
	Updated        int64  `json:"updated"`
	Errors         int64  `json:"errors"`
	TotalProcessed int64  `json:"total_processed"`
	Batches        int    `json:"batches"`
	DurationMs     int64  `json:"duration_ms"`
	DocsPerSecond  int64  `json:"docs_per_second"`
}

// Publisher announces catalog events to Kafka.
type Publisher struct {
	kafka  EventPublisher
	logger *slog.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(kafka EventPublisher, logger *slog.Logger) *Publisher {
	return &Publisher{kafka: kafka, logger: logger}
}

// PublishIngestionCompleted publishes an ingestion.completed event keyed by run ID.
func (p *Publisher) PublishIngestionCompleted(ctx context.Context, stats domain.IngestionStats) error {
	data := IngestionCompletedData{
		RunID:          stats.RunID,
		Source:         stats.Source,
		Inserted:       stats.Inserted,
		Updated:        stats.Updated,
		Errors:         stats.Errors,
		TotalProcessed: stats.TotalProcessed,
		Batches:        stats.Batches,
		DurationMs:     stats.DurationMs(),
		DocsPerSecond:  stats.DocsPerSecond(),
	}

	evt, err := pkgkafka.NewEvent(EventIngestionCompleted, stats.RunID, AggregateTypeIngestion, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create ingestion.completed event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if id := logger.RunIDFromContext(ctx); id != "" {
		evt.Metadata["run_id"] = id
	}

	if err := p.kafka.Publish(ctx, TopicIngestionCompleted, evt); err != nil {
		return fmt.Errorf("publish ingestion.completed: %w", err)
	}

	p.logger.InfoContext(ctx, "published ingestion.completed event",
		slog.String("run_id", stats.RunID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}
