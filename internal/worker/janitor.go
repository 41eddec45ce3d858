package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops stale state from an in-process store
type Sweeper interface {
	Purge()
}

// Janitor periodically sweeps in-process caches so expired entries that
// are never read again do not pile up
type Janitor struct {
	sweepers map[string]Sweeper
	logger   *slog.Logger
	interval time.Duration
}

// NewJanitor creates a janitor running every interval
func NewJanitor(sweepers map[string]Sweeper, logger *slog.Logger, interval time.Duration) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{sweepers: sweepers, logger: logger, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", slog.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	for name, s := range j.sweepers {
		start := time.Now()
		s.Purge()
		j.logger.Debug("sweep finished",
			slog.String("store", name),
			slog.Duration("took", time.Since(start)),
		)
	}
}
