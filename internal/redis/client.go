package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/peercall/signaling/config"
)

var client *redis.Client
var ctx = context.Background()

// Connect initializes the Redis client. An empty addr leaves the mirror
// disabled and is not an error.
func Connect(cfg config.RedisConfig) error {
	if cfg.Addr == "" {
		return nil
	}

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// Enabled reports whether a mirror connection is up.
func Enabled() bool {
	return client != nil
}
