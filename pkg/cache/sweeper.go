package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs ClearExpired once a minute.
const DefaultSweepSchedule = "@every 1m"

// Expirer is a cache that can drop stale entries in bulk.
type Expirer interface {
	ClearExpired() int
}

// Sweeper periodically clears expired entries out of band.
type Sweeper struct {
	cron   *cron.Cron
	cache  Expirer
	logger *slog.Logger
}

// NewSweeper schedules cache.ClearExpired. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(cache Expirer, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		cron:   cron.New(),
		cache:  cache,
		logger: logger.With("module", "cache_sweeper"),
	}

	_, err := s.cron.AddFunc(schedule, s.Sweep)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Sweep runs one pass immediately.
func (s *Sweeper) Sweep() {
	removed := s.cache.ClearExpired()
	if removed > 0 {
		s.logger.Debug("cleared expired evaluation results", "removed", removed)
	}
}

// Start begins the schedule; Stop waits for a running sweep to finish.
func (s *Sweeper) Start() {
	s.cron.Start()
}

func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
