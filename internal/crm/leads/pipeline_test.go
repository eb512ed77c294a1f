package leads

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/platform/cache"
)

type countingProvider struct {
	config PipelineConfig
	calls  int
}

func (c *countingProvider) Pipeline(context.Context) (PipelineConfig, error) {
	c.calls++
	return c.config, nil
}

func TestCachedPipelineServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingProvider{config: DefaultPipeline()}
	cached := NewCachedPipeline(inner, cache.NewJSONCache(client, time.Minute), slog.Default())

	first, err := cached.Pipeline(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	second, err := cached.Pipeline(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, first.StageProbability, second.StageProbability)
}

func TestCachedPipelineDegradesWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	inner := &countingProvider{config: DefaultPipeline()}
	cached := NewCachedPipeline(inner, cache.NewJSONCache(client, time.Minute), slog.Default())

	config, err := cached.Pipeline(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, 10, config.ProbabilityFor(StageNew))
}
