package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/ingest"
	pkgkafka "github.com/SofiaQuintana/products-inventory/pkg/kafka"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
)

// Event types handled or emitted by the catalog service.
const (
	EventProductUpserted    = "product.upserted"
	EventIngestionCompleted = "ingestion.completed"
)

var (
	TopicProductUpserted    = pkgkafka.Topic("product", "upserted")
	TopicIngestionCompleted = pkgkafka.Topic("ingestion", "completed")
)

// Consumer applies single-product upserts streamed over Kafka. The payload
// is a raw catalog row, normalized exactly like a CSV row.
type Consumer struct {
	sink   ingest.Sink
	logger *slog.Logger
}

// NewConsumer creates a new product event consumer.
func NewConsumer(sink ingest.Sink, logger *slog.Logger) *Consumer {
	return &Consumer{sink: sink, logger: logger}
}

// Handle processes one event. Rows that cannot be normalized are logged and
// acknowledged; store failures are returned so the message is retried or
// dead-lettered.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	log := logger.WithContext(ctx, c.logger).With(
		slog.String("event_id", event.EventID),
		slog.String("event_type", event.EventType),
	)

	if event.EventType != EventProductUpserted {
		log.DebugContext(ctx, "ignoring unhandled event type")
		return nil
	}

	row, err := decodeRow(event.Data)
	if err != nil {
		log.WarnContext(ctx, "dropping undecodable product event", slog.String("error", err.Error()))
		return nil
	}

	product, err := ingest.Normalize(row)
	if err != nil {
		log.WarnContext(ctx, "dropping invalid product event", slog.String("error", err.Error()))
		return nil
	}

	res, err := c.sink.BulkUpsert(ctx, []domain.Product{product})
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", product.SKU, err)
	}

	log.InfoContext(ctx, "product upserted from event",
		slog.String("sku", product.SKU),
		slog.Bool("inserted", res.Inserted > 0),
	)
	return nil
}

// decodeRow reads an object of column values. Non-string scalars such as a
// numeric price are rendered in their JSON form.
func decodeRow(data json.RawMessage) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode row: payload is not an object")
	}

	row := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			row[k] = val
		case json.Number:
			row[k] = val.String()
		case bool:
			row[k] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("decode row: column %q is not a scalar", k)
		}
	}
	return row, nil
}
