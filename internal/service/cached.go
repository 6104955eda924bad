package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/SofiaQuintana/products-inventory/internal/cache"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
)

// readCached decodes the value under key. Faults are logged and reported as
// a miss.
func readCached[T any](ctx context.Context, c cache.Cache, kind, key string) (T, bool) {
	var zero T
	data, err := c.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		cache.Observe(kind, cache.ResultMiss)
		return zero, false
	case err != nil:
		cache.Observe(kind, cache.ResultError)
		logger.FromContext(ctx).WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		cache.Observe(kind, cache.ResultError)
		logger.FromContext(ctx).WarnContext(ctx, "cache entry undecodable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return zero, false
	}
	cache.Observe(kind, cache.ResultHit)
	return v, true
}

// writeCached stores v under key. Faults are logged only.
func writeCached(ctx context.Context, c cache.Cache, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.Set(ctx, key, data, ttl)
	}
	if err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
