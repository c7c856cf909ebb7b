package service

import (
	"context"
	"time"

	"github.com/arashthr/lodekeep/internal/logging"
	"github.com/lthibault/jitterbug/v2"
)

type SweeperStore interface {
	DeleteExpiredPending(ctx context.Context) (int64, error)
}

type SweeperJobStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired pending bookmarks and finished
// jobs past retention. Expiry is enforced by queries either way; the
// sweeper just keeps the tables from growing.
type Sweeper struct {
	Bookmarks SweeperStore
	Jobs      SweeperJobStore
	Interval  time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := jitterbug.New(s.Interval, &jitterbug.Norm{Stdev: s.Interval / 10})
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if removed, err := s.Bookmarks.DeleteExpiredPending(ctx); err != nil {
		logging.Logger.Errorw("sweeping expired pending bookmarks", "error", err)
	} else if removed > 0 {
		logging.Logger.Infow("removed expired pending bookmarks", "count", removed)
	}
	if removed, err := s.Jobs.DeleteExpired(ctx); err != nil {
		logging.Logger.Errorw("sweeping expired jobs", "error", err)
	} else if removed > 0 {
		logging.Logger.Infow("removed expired jobs", "count", removed)
	}
}
