// Package cache memoizes condition evaluation results by fingerprint.
package cache

import (
	"context"
	"time"
)

const (
	// DefaultCapacity is the number of entries kept by a Memory cache.
	DefaultCapacity = 1000

	// DefaultTTL is how long a result stays valid.
	DefaultTTL = 5 * time.Minute
)

// Cache stores evaluation results. Implementations must be safe for
// concurrent use. A zero ttl passed to Set means the implementation default.
type Cache interface {
	Get(ctx context.Context, key string) (result bool, ok bool)
	Set(ctx context.Context, key string, result bool, ttl time.Duration)
}

// Stats describes cache occupancy.
//
// HitRate is TotalHits divided by Size. It is a rough proxy for cache
// usefulness, not a request-level hit ratio.
type Stats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	TotalHits int64   `json:"total_hits"`
	HitRate   float64 `json:"hit_rate"`
}

// StatsProvider is implemented by caches that expose Stats.
type StatsProvider interface {
	Stats() Stats
}
