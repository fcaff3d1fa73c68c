package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"parcel-dispatch/internal/config"
)

// Connect opens a Redis client and checks it with PING.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
