// Package service implements catalog search, suggestions and ingestion on
// top of a product store and a query cache.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SofiaQuintana/products-inventory/internal/cache"
	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
	"github.com/SofiaQuintana/products-inventory/pkg/pagination"
)

// Default cache lifetimes.
const (
	DefaultSearchTTL  = 300 * time.Second
	DefaultSuggestTTL = 600 * time.Second
)

// SearchService serves ranked search with a cache-aside read path.
type SearchService struct {
	store store.ProductStore
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewSearchService creates a search service. A nil cache disables caching.
func NewSearchService(st store.ProductStore, c cache.Cache, ttl time.Duration) *SearchService {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = DefaultSearchTTL
	}
	return &SearchService{store: st, cache: c, ttl: ttl, now: time.Now}
}

// Search returns one page of products matching q, best match first. page
// and limit are normalized; a blank q is invalid input.
func (s *SearchService) Search(ctx context.Context, q string, page, limit int) (*domain.SearchResult, error) {
	start := s.now()
	if strings.TrimSpace(q) == "" {
		return nil, apperrors.InvalidInput(`query parameter "q" is required`)
	}
	params := pagination.New(page, limit)
	key := cache.SearchKey(q, params.Page, params.Limit)

	if cached, ok := readCached[domain.SearchResult](ctx, s.cache, "search", key); ok {
		cached.LatencyMs = s.now().Sub(start).Milliseconds()
		return &cached, nil
	}

	results, total, err := s.store.Search(ctx, domain.SearchQuery{Text: q, Page: params.Page, Limit: params.Limit})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if results == nil {
		results = []domain.Product{}
	}

	result := &domain.SearchResult{
		Q:         q,
		Page:      params.Page,
		Limit:     params.Limit,
		Total:     total,
		HasNext:   params.HasNext(total),
		Results:   results,
		LatencyMs: s.now().Sub(start).Milliseconds(),
	}
	writeCached(ctx, s.cache, key, result, s.ttl)

	logger.FromContext(ctx).DebugContext(ctx, "search executed",
		slog.String("query", q),
		slog.Int("results", len(results)),
		slog.Int64("total", total),
		slog.Int64("latency_ms", result.LatencyMs),
	)
	return result, nil
}
