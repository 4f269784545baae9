// Package slackingress receives Slack Events API callbacks and hands lead
// messages to the processor.
package slackingress

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"leadflow/internal/common/logger"
)

const (
	DefaultDedupSize = 10000
	DefaultDedupTTL  = 10 * time.Minute

	dedupKeyPrefix = "lead:slack:event:"
)

// Deduper remembers Slack event ids. The local LRU catches retries hitting
// this replica; the Redis SETNX catches retries routed to another one.
type Deduper struct {
	seen   *lru.Cache[string, struct{}]
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewDeduper(size int, ttl time.Duration, rdb *redis.Client, log logger.Logger) (*Deduper, error) {
	if size <= 0 {
		size = DefaultDedupSize
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Deduper{seen: cache, redis: rdb, ttl: ttl, logger: log}, nil
}

// Duplicate records id and reports whether it was already seen. Redis
// failures fall back to the local cache alone.
func (d *Deduper) Duplicate(ctx context.Context, id string) bool {
	if found, _ := d.seen.ContainsOrAdd(id, struct{}{}); found {
		return true
	}
	if d.redis == nil {
		return false
	}

	fresh, err := d.redis.SetNX(ctx, dedupKeyPrefix+id, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("redis dedup unavailable", map[string]interface{}{"eventId": id, "error": err.Error()})
		return false
	}
	return !fresh
}

func (d *Deduper) Len() int {
	return d.seen.Len()
}
