// Package memory is an in-process ProductStore for tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
)

// Store keeps products in a map keyed by SKU. Thread-safe via sync.RWMutex.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	now      func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ store.ProductStore = (*Store)(nil)

// BulkUpsert inserts or replaces each product, keeping createdAt of
// existing SKUs.
func (s *Store) BulkUpsert(ctx context.Context, products []domain.Product) (store.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return store.UpsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res store.UpsertResult
	now := s.now()
	for _, p := range products {
		p.Score = 0
		p.UpdatedAt = now
		if existing, ok := s.products[p.SKU]; ok {
			p.CreatedAt = existing.CreatedAt
			res.Updated++
		} else {
			p.CreatedAt = now
			res.Inserted++
		}
		s.products[p.SKU] = p
	}
	return res, nil
}

// Search scores each product by weighted term matches on title, category,
// brand, sku and product type. A product matches when any query term does.
func (s *Store) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Product, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	terms := tokenize(q.Text)

	s.mu.RLock()
	matched := make([]domain.Product, 0)
	for _, p := range s.products {
		if score := relevance(p, terms); score > 0 {
			p.Score = score
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].SKU < matched[j].SKU
	})

	total := int64(len(matched))
	start := min(q.Skip(), len(matched))
	end := min(start+q.Limit, len(matched))
	return matched[start:end], total, nil
}

// Suggest returns titles with the given case-insensitive prefix in title
// order.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(prefix)

	s.mu.RLock()
	titles := make([]string, 0)
	for _, p := range s.products {
		if strings.HasPrefix(strings.ToLower(p.Title), lower) {
			titles = append(titles, p.Title)
		}
	}
	s.mu.RUnlock()

	sort.Strings(titles)
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

// Get returns the stored product for sku.
func (s *Store) Get(sku string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[sku]
	return p, ok
}

// Len returns the number of stored products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func (s *Store) EnsureIndexes(context.Context) error { return nil }
func (s *Store) Ping(context.Context) error          { return nil }
func (s *Store) Close(context.Context) error         { return nil }

func relevance(p domain.Product, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	fields := []struct {
		text   string
		weight float64
	}{
		{p.Title, domain.WeightTitle},
		{p.Category, domain.WeightCategory},
		{p.Brand, domain.WeightBrand},
		{p.SKU, domain.WeightSKU},
		{p.ProductType, domain.WeightProductType},
	}

	var score float64
	for _, f := range fields {
		tokens := tokenize(f.text)
		for _, term := range terms {
			for _, tok := range tokens {
				if tok == term {
					score += f.weight
				}
			}
		}
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
