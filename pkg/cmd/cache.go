package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/cache"
	"github.com/dukex/leadflow/pkg/config"
)

// EvaluationCache is a cache that reports its statistics.
type EvaluationCache interface {
	cache.Cache
	cache.StatsProvider
}

// NewCache connects to Redis when redisURL is set and falls back to an
// in-process cache otherwise.
func NewCache(ctx context.Context, redisURL string, cfg config.CacheConfig, logger *slog.Logger) (EvaluationCache, error) {
	if redisURL != "" {
		shared, err := cache.NewRedisFromURL(ctx, redisURL, logger, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis cache: %w", err)
		}

		logger.Info("using Redis evaluation cache")

		return shared, nil
	}

	return cache.NewMemory(cache.WithCapacity(cfg.Capacity), cache.WithTTL(cfg.TTL)), nil
}

// StartSweeper clears expired entries on schedule for caches that need it.
// The returned stop function is a no-op for caches that expire on their own.
func StartSweeper(evaluationCache EvaluationCache, schedule string, logger *slog.Logger) (func(context.Context), error) {
	expirer, ok := evaluationCache.(cache.Expirer)
	if !ok {
		return func(context.Context) {}, nil
	}

	sweeper, err := cache.NewSweeper(expirer, schedule, logger)
	if err != nil {
		return nil, err
	}

	sweeper.Start()

	return sweeper.Stop, nil
}
