// Package elasticsearch stores catalog products in an Elasticsearch index.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
)

// Config selects the cluster and index.
type Config struct {
	URL   string
	Index string
	// Refresh makes writes visible to search before BulkUpsert returns.
	Refresh bool
}

// Store is an Elasticsearch-backed ProductStore. Documents are keyed by SKU.
type Store struct {
	client  *elasticsearch.Client
	index   string
	refresh string
	logger  *slog.Logger
	now     func() time.Time
}

var _ store.ProductStore = (*Store)(nil)

// document is the indexed representation of a product.
type document struct {
	SKU         string     `json:"sku"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Brand       string     `json:"brand"`
	ProductType string     `json:"product_type"`
	Price       *float64   `json:"price"`
	Description string     `json:"description"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64  `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Result string `json:"result"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a store for cfg. It does not contact the cluster; call
// EnsureIndexes to create the index.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.URL}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	refresh := "false"
	if cfg.Refresh {
		refresh = "wait_for"
	}
	return &Store{
		client:  client,
		index:   cfg.Index,
		refresh: refresh,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// bulkBody encodes one update-with-upsert action per product. createdAt is
// only part of the upsert document, so existing documents keep theirs.
func bulkBody(index string, products []domain.Product, now time.Time) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range products {
		doc := document{
			SKU:         p.SKU,
			Title:       p.Title,
			Category:    p.Category,
			Brand:       p.Brand,
			ProductType: p.ProductType,
			Price:       p.Price,
			Description: p.Description,
			UpdatedAt:   now,
		}
		insert := doc
		insert.CreatedAt = &now

		action := map[string]any{"update": map[string]any{"_index": index, "_id": p.SKU}}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(map[string]any{"doc": doc, "upsert": insert}); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}
	return &buf, nil
}

// BulkUpsert sends one bulk request. Items rejected by the cluster are
// reported as a partial failure.
func (s *Store) BulkUpsert(ctx context.Context, products []domain.Product) (res store.UpsertResult, err error) {
	if len(products) == 0 {
		return res, nil
	}
	ctx, end := database.TraceQuery(ctx, database.SystemElasticsearch, "BulkUpsert", s.index+"/_bulk")
	defer func() { end(err) }()

	body, err := bulkBody(s.index, products, s.now())
	if err != nil {
		return res, fmt.Errorf("elasticsearch bulk: %w", err)
	}

	resp, err := s.client.Bulk(body,
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
		s.client.Bulk.WithRefresh(s.refresh),
	)
	if err != nil {
		return res, unavailable("bulk", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() {
		return res, decodeError("bulk", resp)
	}

	var bulk esBulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&bulk); err != nil {
		return res, fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}

	var reasons []string
	for _, item := range bulk.Items {
		for _, r := range item {
			switch {
			case r.Error != nil:
				res.Failed++
				if len(reasons) < 5 {
					reasons = append(reasons, fmt.Sprintf("sku=%s: %s: %s", r.ID, r.Error.Type, r.Error.Reason))
				}
			case r.Result == "created":
				res.Inserted++
			default:
				res.Updated++
			}
		}
	}
	if res.Failed > 0 {
		return res, store.PartialError(res.Failed, fmt.Errorf("elasticsearch bulk: %s", strings.Join(reasons, "; ")))
	}
	return res, nil
}

func searchBody(q domain.SearchQuery) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q.Text,
				"fields": searchFields,
				"type":   "most_fields",
			},
		},
		"from":             q.Skip(),
		"size":             q.Limit,
		"track_total_hits": true,
		"sort":             []any{map[string]any{"_score": "desc"}, map[string]any{"sku": "asc"}},
	}
}

// Search runs a boosted multi_match across the searchable fields.
func (s *Store) Search(ctx context.Context, q domain.SearchQuery) (_ []domain.Product, _ int64, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemElasticsearch, "Search", s.index+"/_search")
	defer func() { end(err) }()

	var esResp esSearchResponse
	if err = s.search(ctx, "search", searchBody(q), &esResp); err != nil {
		return nil, 0, err
	}

	results := make([]domain.Product, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		p := hit.Source.toDomain()
		p.Score = hit.Score
		results = append(results, p)
	}
	return results, esResp.Hits.Total.Value, nil
}

func suggestBody(prefix string, limit int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"prefix": map[string]any{
				"title.prefix": map[string]any{"value": strings.ToLower(prefix)},
			},
		},
		"size":    limit,
		"_source": []string{"title"},
		"sort":    []any{map[string]any{"title.prefix": "asc"}},
	}
}

// Suggest runs a prefix query on the lowercase title keyword.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemElasticsearch, "Suggest", s.index+"/_search")
	defer func() { end(err) }()

	var esResp esSearchResponse
	if err = s.search(ctx, "suggest", suggestBody(prefix, limit), &esResp); err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		titles = append(titles, hit.Source.Title)
	}
	return titles, nil
}

func (s *Store) search(ctx context.Context, op string, body map[string]any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}
	resp, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return unavailable(op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() {
		return decodeError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	return nil
}

// EnsureIndexes creates the index with its mapping unless it exists.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	resp, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return unavailable("check index", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == 200 {
		s.logger.InfoContext(ctx, "elasticsearch index already exists", slog.String("index", s.index))
		return nil
	}

	resp, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return unavailable("create index", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() {
		return decodeError("create index", resp)
	}
	s.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", s.index))
	return nil
}

// DropIndexes deletes the index. A missing index is not an error.
func (s *Store) DropIndexes(ctx context.Context) error {
	resp, err := s.client.Indices.Delete([]string{s.index}, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return unavailable("delete index", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() && resp.StatusCode != 404 {
		return decodeError("delete index", resp)
	}
	return nil
}

// Ping checks whether the cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return unavailable("ping", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", resp.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport has no connections to release.
func (s *Store) Close(context.Context) error { return nil }

func (d document) toDomain() domain.Product {
	p := domain.Product{
		SKU:         d.SKU,
		Title:       d.Title,
		Category:    d.Category,
		Brand:       d.Brand,
		ProductType: d.ProductType,
		Price:       d.Price,
		Description: d.Description,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.CreatedAt != nil {
		p.CreatedAt = *d.CreatedAt
	}
	return p
}

func decodeError(op string, resp *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp esErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Errorf("elasticsearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("elasticsearch %s: unexpected status %s", op, resp.Status())
}

func unavailable(op string, err error) error {
	return fmt.Errorf("elasticsearch %s: %w", op, apperrors.Unavailable("elasticsearch", err))
}
