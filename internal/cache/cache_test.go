package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaQuintana/products-inventory/pkg/breaker"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	cfg := breaker.DefaultConfig("cache-test-" + t.Name())
	cfg.MinRequests = 3
	c := NewRedis(client, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedis_GetMiss(t *testing.T) {
	c, _ := newTestRedis(t)

	_, err := c.Get(context.Background(), "search:shoe:0:20")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_SetGetWithTTL(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "suggest:bl", []byte(`["Blue Hat"]`), 600*time.Second))
	assert.Equal(t, 600*time.Second, mr.TTL("suggest:bl"))

	val, err := c.Get(ctx, "suggest:bl")
	require.NoError(t, err)
	assert.Equal(t, `["Blue Hat"]`, string(val))

	mr.FastForward(601 * time.Second)
	_, err = c.Get(ctx, "suggest:bl")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_MissesDoNotTripBreaker(t *testing.T) {
	c, _ := newTestRedis(t)

	for range 10 {
		_, _ = c.Get(context.Background(), "absent")
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestRedis_BreakerOpensWhenServerDown(t *testing.T) {
	c, mr := newTestRedis(t)
	mr.Close()

	for range 3 {
		_, err := c.Get(context.Background(), "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMiss)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, c.Set(context.Background(), "k", []byte("v"), time.Minute), gobreaker.ErrOpenState)
}

func TestRedis_Ping(t *testing.T) {
	c, _ := newTestRedis(t)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "search:red shoe:2:50", SearchKey("red shoe", 2, 50))
	assert.Equal(t, "suggest:Bl", SuggestKey("Bl"))
}

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(lookups.WithLabelValues("search", ResultHit))
	Observe("search", ResultHit)
	assert.Equal(t, before+1, testutil.ToFloat64(lookups.WithLabelValues("search", ResultHit)))
}
