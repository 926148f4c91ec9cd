// AngelaMos | 2026
// sweeper.go

package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs FindUnprocessed on a fixed interval until its context ends.
type Sweeper struct {
	service   *Service
	interval  time.Duration
	olderThan time.Duration
	logger    *slog.Logger
}

func NewSweeper(
	service *Service,
	interval, olderThan time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		service:   service,
		interval:  interval,
		olderThan: olderThan,
		logger:    logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("deletion request sweep started",
		"interval", s.interval.String(),
		"older_than", s.olderThan.String(),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("deletion request sweep stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	report, err := s.service.FindUnprocessed(ctx, s.olderThan)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("deletion request sweep failed", "error", err)
		}
		return
	}

	if report.Stale > 0 {
		s.logger.Warn("unprocessed deletion requests",
			"stale", report.Stale,
			"fixed", report.Fixed,
		)
	}
}
