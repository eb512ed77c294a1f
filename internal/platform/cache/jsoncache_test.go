package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) *JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, time.Minute)
}

func TestJSONCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "settings:pipeline", sample{Name: "default", Count: 7}))

	var got sample
	require.NoError(t, c.Get(ctx, "settings:pipeline", &got))
	require.Equal(t, "default", got.Name)
	require.Equal(t, 7, got.Count)
}

func TestJSONCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var got sample
	err := c.Get(ctx, "absent", &got)
	require.ErrorIs(t, err, ErrMiss)
}

func TestJSONCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", sample{Name: "x"}))
	require.NoError(t, c.Invalidate(ctx, "k"))

	var got sample
	require.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}
