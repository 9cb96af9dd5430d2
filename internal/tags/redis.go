package tags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

const redisPingTimeout = 5 * time.Second

// RedisConfig holds connection settings for NewRedisClient.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisCounter keeps tag counts in a sorted set so they survive restarts and
// are shared across replicas. Equal counts are ordered by member, descending.
type RedisCounter struct {
	client redis.Cmdable
	key    string
}

// NewRedisCounter stores counts under key.
func NewRedisCounter(client redis.Cmdable, key string) *RedisCounter {
	return &RedisCounter{client: client, key: key}
}

// Increment adds one to each tag in a single pipeline.
func (c *RedisCounter) Increment(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range tags {
			pipe.ZIncrBy(ctx, c.key, 1, t)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment tag counts: %w", err)
	}
	return nil
}

// Top returns up to limit tags, most frequent first.
func (c *RedisCounter) Top(ctx context.Context, limit int) ([]domain.TagCount, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := c.client.ZRevRangeWithScores(ctx, c.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read tag counts: %w", err)
	}

	out := make([]domain.TagCount, 0, len(members))
	for _, m := range members {
		tag, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, domain.TagCount{Tag: tag, Count: int64(m.Score)})
	}
	return out, nil
}

// Reset deletes the sorted set.
func (c *RedisCounter) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("reset tag counts: %w", err)
	}
	return nil
}
