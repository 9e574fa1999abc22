package approval

import (
	"context"
	"time"

	"log/slog"

	"github.com/parleyhq/parley/internal/logging"
)

// Sweeper drives Workflow.Sweep on a fixed interval. It is the only
// asynchronous actor in the engine; foreground operations also sweep
// inline, so the ticker exists to expire requests nobody is touching.
type Sweeper struct {
	workflow *Workflow
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. A non-positive interval falls back to 60
// seconds.
func NewSweeper(workflow *Workflow, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{workflow: workflow, interval: interval, logger: logger}
}

// Run ticks until the context is cancelled. It blocks, so callers start it
// in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Timeout sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Timeout sweeper stopped")
			return
		case <-ticker.C:
			swept, err := s.workflow.Sweep(ctx)
			if err != nil {
				s.logger.Warn("Sweep failed", "err", err)
				continue
			}
			if swept > 0 {
				s.logger.Info("Expired pending requests", "count", swept)
			}
		}
	}
}
