package bootstrap

import (
	"context"
	"fmt"

	"github.com/artpar/typemap/adapters/memory"
	"github.com/artpar/typemap/adapters/redis"
	"github.com/artpar/typemap/config"
	"github.com/artpar/typemap/core/jobs"
)

// OpenQueue creates the configured job backend.
func OpenQueue(ctx context.Context, cfg config.QueueConfig) (jobs.Queue, error) {
	switch cfg.Adapter {
	case "", "memory":
		return memory.NewQueue(), nil
	case "redis":
		q, err := redis.Open(ctx, redis.Config{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Prefix:       cfg.Redis.Prefix,
			PollInterval: cfg.Redis.PollInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis queue: %w", err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue adapter %q", cfg.Adapter)
	}
}
