package mongo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := database.NewMongoClient(ctx, database.MongoConfig{URI: uri}, logger)
	require.NoError(t, err)

	collection := fmt.Sprintf("products_test_%d", time.Now().UnixNano())
	s := New(client, "catalog_test", collection, logger)
	require.NoError(t, s.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.coll.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestIntegration_UpsertSearchSuggest(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	res, err := s.BulkUpsert(ctx, []domain.Product{
		{SKU: "A", Title: "Red Shoe", Category: "Footwear"},
		{SKU: "B", Title: "Blue Hat", Category: "Hats"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted)

	res, err = s.BulkUpsert(ctx, []domain.Product{{SKU: "A", Title: "Red Shoe", Category: "Shoes"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Inserted)
	assert.Equal(t, int64(1), res.Updated)

	results, total, err := s.Search(ctx, domain.SearchQuery{Text: "shoe", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].SKU)
	assert.Greater(t, results[0].Score, 0.0)
	assert.False(t, results[0].CreatedAt.IsZero())

	titles, err := s.Suggest(ctx, "bl", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Blue Hat"}, titles)

	literal, err := s.Suggest(ctx, ".*", 10)
	require.NoError(t, err)
	assert.Empty(t, literal)
}

func TestIntegration_DropIndexesMissingCollection(t *testing.T) {
	s := newIntegrationStore(t)
	require.NoError(t, s.coll.Drop(context.Background()))
	assert.NoError(t, s.DropIndexes(context.Background()))
}
