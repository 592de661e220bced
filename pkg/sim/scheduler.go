package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradesim/pkg/util"
)

// Scheduler fires one cleanup pass per day at a fixed UTC hour, meant for
// off-peak execution. The manual /cleanupLimitOrders trigger goes through the
// same Manager.RunCleanup, so both paths produce the same result shape.
type Scheduler struct {
	mgr     *Manager
	clock   util.Clock
	hourUTC int
	log     *zap.SugaredLogger

	// OnRun, when set, receives every completed cleanup result. Used by
	// tests and by the API layer to surface the last scheduled run.
	OnRun func(CleanupResult)
}

func NewScheduler(mgr *Manager, clock util.Clock, hourUTC int, log *zap.SugaredLogger) *Scheduler {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 0
	}
	return &Scheduler{mgr: mgr, clock: clock, hourUTC: hourUTC, log: log}
}

// nextRun returns the next occurrence of hourUTC strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Run blocks until ctx is cancelled, running one cleanup at each boundary.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := s.nextRun(now)
		s.log.Infow("cleanup_scheduled", "next_run", next, "in", next.Sub(now).String())

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(next.Sub(now)):
		}

		res, err := s.mgr.RunCleanup()
		if err != nil {
			s.log.Errorw("scheduled_cleanup_failed", "err", err)
			continue
		}
		if s.OnRun != nil {
			s.OnRun(res)
		}
	}
}
