package tags_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/tags"
)

func newRedisCounter(t *testing.T) *tags.RedisCounter {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return tags.NewRedisCounter(client, "test:popular")
}

func TestRedisCounter_IncrementTopReset(t *testing.T) {
	ctx := context.Background()
	c := newRedisCounter(t)

	require.NoError(t, c.Increment(ctx, "#gotmilk", "#milkmob", "#gotmilk"))
	require.NoError(t, c.Increment(ctx))

	top, err := c.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.TagCount{{Tag: "#gotmilk", Count: 2}, {Tag: "#milkmob", Count: 1}}, top)

	top, err = c.Top(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	require.NoError(t, c.Reset(ctx))
	top, err = c.Top(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestNewRedisClient(t *testing.T) {
	_, err := tags.NewRedisClient(tags.RedisConfig{})
	require.Error(t, err)

	srv := miniredis.RunT(t)
	client, err := tags.NewRedisClient(tags.RedisConfig{Address: srv.Addr()})
	require.NoError(t, err)
	_ = client.Close()
}
