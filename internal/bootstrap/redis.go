package bootstrap

import (
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/milkmob/internal/config"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/tags"
)

// SetupTagCounter returns a Redis-backed popularity counter when Redis is
// enabled and reachable, and a process-local counter otherwise. The client is
// nil in the latter case.
func SetupTagCounter(cfg *config.Config, log logger.Logger) (tags.Counter, *redis.Client) {
	if !cfg.Redis.Enabled {
		return tags.NewMemoryCounter(), nil
	}

	client, err := tags.NewRedisClient(tags.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis not available, popular tags are process-local",
			logger.Error(err),
		)
		return tags.NewMemoryCounter(), nil
	}

	log.Info("Popular tag counter initialized",
		logger.String("redis_address", cfg.Redis.Address),
		logger.String("key", cfg.Redis.PopularTagsKey),
	)
	return tags.NewRedisCounter(client, cfg.Redis.PopularTagsKey), client
}
