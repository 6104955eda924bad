package elasticsearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store"
	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCluster answers as Elasticsearch would for the paths a test routes.
func fakeCluster(t *testing.T, routes map[string]http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{URL: srv.URL, Index: "products"}, testLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestBulkBody(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	price := 9.5
	buf, err := bulkBody("products", []domain.Product{{SKU: "A", Title: "Red Shoe", Price: &price}}, now)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"update":{"_index":"products","_id":"A"}}`, lines[0])

	var body struct {
		Doc    map[string]any `json:"doc"`
		Upsert map[string]any `json:"upsert"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &body))
	assert.NotContains(t, body.Doc, "createdAt")
	assert.Equal(t, "2026-01-02T03:04:05Z", body.Doc["updatedAt"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body.Upsert["createdAt"])
	assert.Equal(t, 9.5, body.Upsert["price"])
}

func TestSearchBody(t *testing.T) {
	body := searchBody(domain.SearchQuery{Text: "shoe", Page: 2, Limit: 10})

	assert.Equal(t, 20, body["from"])
	assert.Equal(t, 10, body["size"])
	assert.Equal(t, true, body["track_total_hits"])
	mm := body["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "shoe", mm["query"])
	assert.Equal(t, []string{"title^10", "category^7", "brand^5", "sku.text^3", "product_type^1"}, mm["fields"])
}

func TestSuggestBody_LowercasesPrefix(t *testing.T) {
	body := suggestBody("ReD", 10)
	prefix := body["query"].(map[string]any)["prefix"].(map[string]any)["title.prefix"].(map[string]any)
	assert.Equal(t, "red", prefix["value"])
	assert.Equal(t, 10, body["size"])
}

func TestBulkUpsert_CountsResults(t *testing.T) {
	var actions int
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"POST /products/_bulk": func(w http.ResponseWriter, r *http.Request) {
			sc := bufio.NewScanner(r.Body)
			for sc.Scan() {
				if bytes.HasPrefix(sc.Bytes(), []byte(`{"update"`)) {
					actions++
				}
			}
			_, _ = w.Write([]byte(`{"errors":false,"items":[
				{"update":{"_id":"A","result":"created","status":201}},
				{"update":{"_id":"B","result":"updated","status":200}}]}`))
		},
	})

	res, err := s.BulkUpsert(context.Background(), []domain.Product{{SKU: "A"}, {SKU: "B"}})
	require.NoError(t, err)
	assert.Equal(t, 2, actions)
	assert.Equal(t, store.UpsertResult{Inserted: 1, Updated: 1}, res)
}

func TestBulkUpsert_ItemErrorsArePartial(t *testing.T) {
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"POST /products/_bulk": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"errors":true,"items":[
				{"update":{"_id":"A","result":"created","status":201}},
				{"update":{"_id":"B","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad price"}}}]}`))
		},
	})

	res, err := s.BulkUpsert(context.Background(), []domain.Product{{SKU: "A"}, {SKU: "B"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPartialBatch)
	assert.Contains(t, err.Error(), "bad price")
	assert.Equal(t, store.UpsertResult{Inserted: 1, Failed: 1}, res)
}

func TestBulkUpsert_Empty(t *testing.T) {
	s := fakeCluster(t, nil)
	res, err := s.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestSearch_MapsHits(t *testing.T) {
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"POST /products/_search": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"hits":{"total":{"value":3},"hits":[
				{"_score":4.5,"_source":{"sku":"A","title":"Red Shoe","createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-02T00:00:00Z"}}]}}`))
		},
	})

	results, total, err := s.Search(context.Background(), domain.SearchQuery{Text: "shoe", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].SKU)
	assert.Equal(t, 4.5, results[0].Score)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), results[0].CreatedAt)
}

func TestSearch_ClusterError(t *testing.T) {
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"POST /products/_search": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"query_shard_exception","reason":"failed to create query"},"status":400}`))
		},
	})

	_, _, err := s.Search(context.Background(), domain.SearchQuery{Text: "x", Limit: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query_shard_exception")
}

func TestSuggest_ReturnsTitles(t *testing.T) {
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"POST /products/_search": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[
				{"_source":{"title":"Red Hat"}},{"_source":{"title":"Red Shoe"}}]}}`))
		},
	})

	titles, err := s.Suggest(context.Background(), "red", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red Hat", "Red Shoe"}, titles)
}

func TestEnsureIndexes_CreatesMissingIndex(t *testing.T) {
	var created bool
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"PUT /products": func(w http.ResponseWriter, r *http.Request) {
			var mapping map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&mapping))
			assert.Contains(t, mapping, "mappings")
			created = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		},
	})

	require.NoError(t, s.EnsureIndexes(context.Background()))
	assert.True(t, created)
}

func TestEnsureIndexes_ExistingIndex(t *testing.T) {
	s := fakeCluster(t, map[string]http.HandlerFunc{
		"HEAD /products": func(w http.ResponseWriter, _ *http.Request) {},
	})
	require.NoError(t, s.EnsureIndexes(context.Background()))
}

func TestDropIndexes_IgnoresMissing(t *testing.T) {
	s := fakeCluster(t, nil)
	require.NoError(t, s.DropIndexes(context.Background()))
}

func TestPing_Unreachable(t *testing.T) {
	s, err := New(Config{URL: "http://127.0.0.1:1"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultIndexName, s.index)

	err = s.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}
