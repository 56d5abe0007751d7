package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "leadflow:eval:"

// Redis shares evaluation results between processes. Capacity is left to the
// server's maxmemory policy; hit counters are local to this process.
type Redis struct {
	client     redis.UniversalClient
	logger     *slog.Logger
	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, logger *slog.Logger, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Redis{
		client:     client,
		logger:     logger.With("module", "redis_cache"),
		defaultTTL: ttl,
	}
}

// NewRedisFromURL parses a redis:// URL and connects.
func NewRedisFromURL(ctx context.Context, url string, logger *slog.Logger, ttl time.Duration) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, err
	}

	return NewRedis(client, logger, ttl), nil
}

// Get reads a cached result. Redis errors are logged and treated as a miss.
func (r *Redis) Get(ctx context.Context, key string) (bool, bool) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "cache read failed", "error", err)
		}

		r.misses.Add(1)

		return false, false
	}

	r.hits.Add(1)

	return value == "1", true
}

// Set writes a result with the given ttl.
func (r *Redis) Set(ctx context.Context, key string, result bool, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	value := "0"
	if result {
		value = "1"
	}

	err := r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
	if err != nil {
		r.logger.WarnContext(ctx, "cache write failed", "error", err)
	}
}

// Stats reports the local hit counter. Size counts lookups seen by this process.
func (r *Redis) Stats() Stats {
	hits := r.hits.Load()
	lookups := hits + r.misses.Load()

	stats := Stats{Size: int(lookups), TotalHits: hits}
	if lookups > 0 {
		stats.HitRate = float64(hits) / float64(lookups)
	}

	return stats
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
