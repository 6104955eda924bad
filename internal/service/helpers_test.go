package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/SofiaQuintana/products-inventory/internal/cache"
	"github.com/SofiaQuintana/products-inventory/internal/domain"
	"github.com/SofiaQuintana/products-inventory/internal/store/memory"
	"github.com/SofiaQuintana/products-inventory/pkg/breaker"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore counts read calls reaching the store.
type countingStore struct {
	*memory.Store
	searches atomic.Int32
	suggests atomic.Int32
}

func (s *countingStore) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Product, int64, error) {
	s.searches.Add(1)
	return s.Store.Search(ctx, q)
}

func (s *countingStore) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	s.suggests.Add(1)
	return s.Store.Suggest(ctx, prefix, limit)
}

func seededStore(t *testing.T, products ...domain.Product) *countingStore {
	t.Helper()
	st := &countingStore{Store: memory.New()}
	_, err := st.BulkUpsert(context.Background(), products)
	require.NoError(t, err)
	return st
}

func newTestCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	c := cache.NewRedis(client, breaker.DefaultConfig("service-test-"+t.Name()), newTestLogger())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

// brokenCache fails every call.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) ([]byte, error)              { return nil, errCacheDown }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error { return errCacheDown }
func (brokenCache) Ping(context.Context) error                               { return errCacheDown }
func (brokenCache) Close() error                                             { return nil }
