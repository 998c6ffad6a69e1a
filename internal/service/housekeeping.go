package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/talhabektas/smartdesk-sub000/internal/store"
	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
)

// HousekeepingService periodically trims the stored notification inbox so
// it cannot grow without bound between restarts.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Keep      int           // newest entries kept
	Retention time.Duration // older entries are removed, 0 disables
	Clock     clock.Clock

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(
	st store.Store,
	logger *slog.Logger,
	interval time.Duration,
	keep int,
	retention time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Keep:      keep,
		Retention: retention,
		Clock:     clock.Real(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup applies the retention rules in one transaction and reports how
// many notifications were removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) (int64, error) {
	var removed int64

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if s.Retention > 0 {
			n, err := tx.Notifications().DeleteNotificationsBefore(ctx, s.Clock.Now().Add(-s.Retention))
			if err != nil {
				return err
			}
			removed += n
		}
		if s.Keep > 0 {
			n, err := tx.Notifications().PruneNotifications(ctx, s.Keep)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("housekeeping cleanup failed", "error", err)
		return 0, err
	}

	s.Logger.Debug("housekeeping cleanup completed", "notifications_removed", removed)
	return removed, nil
}
