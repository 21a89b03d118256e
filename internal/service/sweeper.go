package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs SweepExpired on a fixed interval until its context ends.
type Sweeper struct {
	sessions SessionManager
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(sessions SessionManager, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "session sweeper disabled")
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	purged, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WarnContext(ctx, "session sweep failed", "error", err)
		}
		return
	}
	if purged > 0 {
		s.logger.InfoContext(ctx, "expired sessions purged", "count", purged)
	}
}
