package cache

import (
	"context"
	"log/slog"
	"time"
)

type expiredClearer interface {
	ClearExpired(ctx context.Context) int64
}

// Sweeper periodically removes expired cache entries.
type Sweeper struct {
	cache    expiredClearer
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(cache expiredClearer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// It always returns nil so it can run inside an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("cache sweeper disabled")
		return nil
	}

	s.cache.ClearExpired(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cache sweeper stopped")
			return nil
		case <-ticker.C:
			s.cache.ClearExpired(ctx)
		}
	}
}
