package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SofiaQuintana/products-inventory/internal/cache"
	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
)

// SuggestService serves title prefix suggestions with a cache-aside read path.
type SuggestService struct {
	store store.ProductStore
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewSuggestService creates a suggest service. A nil cache disables caching.
func NewSuggestService(st store.ProductStore, c cache.Cache, ttl time.Duration) *SuggestService {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = DefaultSuggestTTL
	}
	return &SuggestService{store: st, cache: c, ttl: ttl, now: time.Now}
}

// Suggest lists up to domain.MaxSuggestions titles starting with q,
// ignoring case. A blank q yields no suggestions.
func (s *SuggestService) Suggest(ctx context.Context, q string) (*domain.SuggestResult, error) {
	start := s.now()
	result := &domain.SuggestResult{Q: q, Suggestions: []string{}}
	if strings.TrimSpace(q) == "" {
		result.LatencyMs = s.now().Sub(start).Milliseconds()
		return result, nil
	}

	key := cache.SuggestKey(q)
	if cached, ok := readCached[[]string](ctx, s.cache, "suggest", key); ok {
		if cached != nil {
			result.Suggestions = cached
		}
		result.LatencyMs = s.now().Sub(start).Milliseconds()
		return result, nil
	}

	titles, err := s.store.Suggest(ctx, q, domain.MaxSuggestions)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	if titles != nil {
		result.Suggestions = titles
	}
	writeCached(ctx, s.cache, key, result.Suggestions, s.ttl)

	result.LatencyMs = s.now().Sub(start).Milliseconds()
	return result, nil
}
