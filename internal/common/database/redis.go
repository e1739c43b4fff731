// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"clinic-dispatcher/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the client shared by the catalog cache, memory and session stores.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis uses short socket timeouts: every caller sits inside a sub-second turn.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     20,
		MinIdleConns: 5,
		// Context deadlines must cut blocked reads short.
		ContextTimeoutEnabled: true,
	})

	return &RedisClient{Client: rdb}
}

// ConnectRedis returns a client that answered a ping. A client that did not
// is closed so retry loops do not pile up connection pools.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	c := NewRedis(cfg)
	if err := c.pingOrClose(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RedisClient) pingOrClose(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
