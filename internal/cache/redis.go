package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/SofiaQuintana/products-inventory/pkg/breaker"
	"github.com/SofiaQuintana/products-inventory/pkg/database"
)

// Redis is a Cache backed by Redis. Calls go through a circuit breaker so
// an unhealthy server is skipped instead of slowing every request.
type Redis struct {
	client redis.UniversalClient
	cb     *gobreaker.CircuitBreaker[[]byte]
}

var _ Cache = (*Redis)(nil)

// NewRedis wraps client. Misses do not count as breaker failures.
func NewRedis(client redis.UniversalClient, cfg breaker.Config, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		cb: breaker.New[[]byte](cfg, logger, func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		}),
	}
}

func (r *Redis) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "Get", "GET")
	defer func() {
		if errors.Is(err, ErrMiss) {
			end(nil)
			return
		}
		end(err)
	}()

	return r.cb.Execute(func() ([]byte, error) {
		val, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		return val, nil
	})
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "Set", "SET")
	defer func() { end(err) }()

	_, err = r.cb.Execute(func() ([]byte, error) {
		if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return nil, fmt.Errorf("redis set %s: %w", key, err)
		}
		return nil, nil
	})
	return err
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// State reports the breaker state.
func (r *Redis) State() gobreaker.State {
	return r.cb.State()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
