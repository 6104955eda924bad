// Package store defines the persistence contract for catalog products.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
)

// ErrPartialBatch reports that some records of a bulk upsert were not
// written. The accompanying UpsertResult says how many.
var ErrPartialBatch = errors.New("partial batch failure")

// UpsertResult counts the outcome of a bulk upsert.
type UpsertResult struct {
	Inserted int64
	Updated  int64
	Failed   int64
}

// ProductStore persists products keyed by SKU and serves ranked search and
// title prefix lookups. Each SKU upsert is atomic.
type ProductStore interface {
	// BulkUpsert inserts or updates every product in one unordered batch.
	// createdAt is set only when a SKU is first inserted.
	BulkUpsert(ctx context.Context, products []domain.Product) (UpsertResult, error)

	// Search returns one page of products ranked by weighted relevance and
	// the total number of matches.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.Product, int64, error)

	// Suggest returns up to limit titles starting with prefix, ignoring case.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)

	// EnsureIndexes creates the unique SKU, weighted text and title indexes.
	EnsureIndexes(ctx context.Context) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// PartialError wraps cause as a partial batch failure of failed records.
func PartialError(failed int64, cause error) error {
	return fmt.Errorf("%w: %d records failed: %w", ErrPartialBatch, failed, cause)
}
