package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
)

func newTestProduct(sku, title, category, brand string) domain.Product {
	return domain.Product{SKU: sku, Title: title, Category: category, Brand: brand, ProductType: "apparel"}
}

func seed(t *testing.T, s *Store, products ...domain.Product) {
	t.Helper()
	_, err := s.BulkUpsert(context.Background(), products)
	require.NoError(t, err)
}

func TestStore_BulkUpsert_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	res, err := s.BulkUpsert(ctx, []domain.Product{
		newTestProduct("A", "Red Shoe", "Footwear", "Acme"),
		newTestProduct("B", "Blue Hat", "Hats", "Acme"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted)
	assert.Equal(t, int64(0), res.Updated)

	clock = clock.Add(time.Hour)
	res, err = s.BulkUpsert(ctx, []domain.Product{newTestProduct("A", "Red Running Shoe", "Footwear", "Acme")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Inserted)
	assert.Equal(t, int64(1), res.Updated)

	got, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, "Red Running Shoe", got.Title)
	assert.Equal(t, clock.Add(-time.Hour), got.CreatedAt)
	assert.Equal(t, clock, got.UpdatedAt)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Search_RanksByFieldWeight(t *testing.T) {
	s := New()
	seed(t, s,
		newTestProduct("1", "Leather Wallet", "Accessories", "Shoe Palace"),
		newTestProduct("2", "Shoe Horn", "Accessories", "Acme"),
		newTestProduct("3", "Socks", "Shoe Care", "Acme"),
		newTestProduct("4", "Blue Hat", "Hats", "Acme"),
	)

	results, total, err := s.Search(context.Background(), domain.SearchQuery{Text: "shoe", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{results[0].SKU, results[1].SKU, results[2].SKU})
	assert.Equal(t, float64(domain.WeightTitle), results[0].Score)
}

func TestStore_Search_Paginates(t *testing.T) {
	s := New()
	for _, sku := range []string{"a", "b", "c", "d", "e"} {
		seed(t, s, newTestProduct(sku, "Shoe "+sku, "Footwear", "Acme"))
	}

	page, total, err := s.Search(context.Background(), domain.SearchQuery{Text: "shoe", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 1)
	assert.Equal(t, "e", page[0].SKU)

	beyond, total, err := s.Search(context.Background(), domain.SearchQuery{Text: "shoe", Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, beyond)
}

func TestStore_Search_MatchesSKU(t *testing.T) {
	s := New()
	seed(t, s, newTestProduct("SKU-991", "Blue Hat", "Hats", "Acme"))

	results, total, err := s.Search(context.Background(), domain.SearchQuery{Text: "991", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, float64(domain.WeightSKU), results[0].Score)
}

func TestStore_Suggest(t *testing.T) {
	s := New()
	seed(t, s,
		newTestProduct("1", "Red Shoe", "", ""),
		newTestProduct("2", "red hat", "", ""),
		newTestProduct("3", "Blue Red", "", ""),
	)

	got, err := s.Suggest(context.Background(), "RE", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red Shoe", "red hat"}, got)

	limited, err := s.Suggest(context.Background(), "re", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().BulkUpsert(ctx, []domain.Product{newTestProduct("A", "x", "", "")})
	assert.ErrorIs(t, err, context.Canceled)
}
