package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/common/config"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPoolSize = 10

// RedisClient backs the installation token cache and cross-replica Slack
// event dedup.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis accepts either host:port or a redis:// URL. A password or DB set
// in config overrides the URL.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	opts := &redis.Options{Addr: cfg.Address}
	if strings.HasPrefix(cfg.Address, "redis://") || strings.HasPrefix(cfg.Address, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	opts.PoolSize = cfg.PoolSize
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultRedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	return &RedisClient{Client: redis.NewClient(opts)}, nil
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
