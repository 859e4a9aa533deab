package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/metrics"
	"github.com/aussiebroadwan/rollcall/internal/auth/revocation"
)

// HousekeepingService periodically drops revocation entries whose tokens
// have expired anyway, so the registry doesn't grow without bound.
type HousekeepingService struct {
	Registry revocation.Registry
	Logger   *slog.Logger
	Interval time.Duration
	Metrics  *metrics.Metrics

	// Leeway must match the token codec's. A revoked token keeps parsing
	// until exp+leeway, so its entry has to outlive exp by the same margin.
	Leeway time.Duration

	now func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(reg revocation.Registry, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Registry: reg,
		Logger:   logger,
		Interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down. Starting
// twice, or after Stop, does nothing.
func (s *HousekeepingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress sweep. It is
// safe to call more than once and without a prior Start.
func (s *HousekeepingService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if started {
		<-s.doneCh
	}
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one cleanup pass and returns how many entries were removed.
func (s *HousekeepingService) Sweep(ctx context.Context) int {
	n, err := s.Registry.Sweep(ctx, s.now().Add(-s.Leeway))
	if err != nil {
		s.Logger.Error("failed to sweep revoked tokens", "error", err)
		return 0
	}

	s.Metrics.Swept(n)
	s.Logger.Debug("housekeeping sweep completed", "removed", n)
	return n
}
