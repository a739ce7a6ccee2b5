package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HousekeepingService sweeps expired 2FA challenges and cookie grants on a
// fixed interval so a long running sandbox does not grow without bound.
type HousekeepingService struct {
	Store    *Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHousekeepingService sweeps every interval, or every 10 minutes when
// interval is not positive.
func NewHousekeepingService(store *Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &HousekeepingService{Store: store, Logger: logger, Interval: interval, Now: time.Now}
}

// Start runs the sweeper until ctx ends or Stop is called.
func (s *HousekeepingService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop ends the sweeper and waits for a sweep in progress. It is a no-op
// before Start.
func (s *HousekeepingService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.Logger.Info("housekeeping stopped")
}

// Cleanup deletes whatever has expired by now.
func (s *HousekeepingService) Cleanup() {
	challenges, grants := s.Store.DeleteExpired(s.Now())
	if challenges+grants > 0 {
		s.Logger.Debug("expired state swept", "challenges", challenges, "grants", grants)
	}
}
