package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/telemetry"
)

// RefreshService periodically reloads the project snapshot into the
// ProjectService cache and publishes the snapshot gauges.
type RefreshService struct {
	projects  *ProjectService
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
	refreshCh chan chan error
}

// NewRefreshService creates a RefreshService.
func NewRefreshService(projects *ProjectService, interval time.Duration, logger *slog.Logger) *RefreshService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshService{
		projects:  projects,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
		refreshCh: make(chan chan error),
	}
}

// Start runs an immediate refresh, then refreshes on the configured
// interval. It also serves manual refresh requests. Start blocks until the
// context is canceled.
func (s *RefreshService) Start(ctx context.Context) {
	if err := s.refresh(ctx); err != nil {
		s.logger.Error("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh service stopped")
			return
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Error("refresh cycle failed", "error", err)
			}
		case done := <-s.refreshCh:
			done <- s.refresh(ctx)
		}
	}
}

// Refresh triggers an immediate reload, bypassing the interval. It blocks
// until the reload completes or the context is canceled.
func (s *RefreshService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.refreshCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RefreshService) refresh(ctx context.Context) error {
	start := s.now()

	projects, err := s.projects.Reload(ctx)
	if err != nil {
		return err
	}

	stats := computeStats(projects)
	telemetry.Projects.Set(float64(stats.TotalProjects))
	telemetry.TotalPings.Set(float64(stats.TotalPings))

	s.logger.Info("refresh cycle complete",
		"projects", stats.TotalProjects,
		"pings", stats.TotalPings,
		"activity", ClassifyActivity(freshestPing(projects), s.now()).String(),
		"duration", s.now().Sub(start).Round(time.Millisecond),
	)
	return nil
}
