// Package cache holds serialized query results for the search and suggest
// read paths. Callers treat every cache error as advisory.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a key-value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Result label values for lookups.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Cache lookups by key kind and result.",
	},
	[]string{"kind", "result"},
)

// Observe counts one lookup of kind ("search" or "suggest").
func Observe(kind, result string) {
	lookups.WithLabelValues(kind, result).Inc()
}

// SearchKey is the cache key of one search page.
func SearchKey(q string, page, limit int) string {
	return fmt.Sprintf("search:%s:%d:%d", q, page, limit)
}

// SuggestKey is the cache key of a suggestion list.
func SuggestKey(q string) string {
	return "suggest:" + q
}

// Nop never stores anything. It stands in when Redis is disabled.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Ping(context.Context) error                               { return nil }
func (Nop) Close() error                                             { return nil }
