package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/clinic-agenda/internal/observability/metrics"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

const defaultPrefix = "agenda"

// RedisCache shares snapshots between API replicas. Keys embed a generation
// number; InvalidateAll bumps the generation so every replica misses at once
// and stale generations simply expire.
type RedisCache struct {
	redis   *redis.Client
	loader  rowstore.Reader
	ttl     time.Duration
	prefix  string
	logger  *logging.Logger
	metrics *metrics.CacheMetrics
}

// NewRedisCache creates a Redis-backed snapshot cache.
func NewRedisCache(client *redis.Client, loader rowstore.Reader, ttl time.Duration, m *metrics.CacheMetrics, logger *logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCache{
		redis:   client,
		loader:  loader,
		ttl:     ttl,
		prefix:  defaultPrefix,
		logger:  logger,
		metrics: m,
	}
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *RedisCache) snapshotKey(gen int64, name string) string {
	return fmt.Sprintf("%s:snapshot:%d:%s", c.prefix, gen, name)
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.redis.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetOrLoad never fails because of Redis: on a Redis error it reads the
// table straight from the row store.
func (c *RedisCache) GetOrLoad(ctx context.Context, name string) (*rowstore.Table, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("snapshot cache unavailable", "table", name, "error", err)
		c.metrics.ObserveLookup(name, false)
		return c.loader.ReadTable(ctx, name)
	}

	key := c.snapshotKey(gen, name)
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var table rowstore.Table
		jsonErr := json.Unmarshal(data, &table)
		if jsonErr == nil {
			c.metrics.ObserveLookup(name, true)
			return &table, nil
		}
		c.logger.Warn("discarding corrupt snapshot", "table", name, "error", jsonErr)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("snapshot cache read failed", "table", name, "error", err)
	}
	c.metrics.ObserveLookup(name, false)

	table, err := c.loader.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal snapshot %s: %w", name, err)
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed", "table", name, "error", err)
	}
	return table, nil
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	if err := c.redis.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	c.metrics.ObserveInvalidation()
	return nil
}
