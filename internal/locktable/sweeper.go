package locktable

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/logging"
)

// DefaultSweepInterval is how often expired locks are collected.
const DefaultSweepInterval = time.Minute

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
// Sweep errors are logged; the loop keeps going.
func RunSweeper(ctx context.Context, table Table, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := logging.FromContext(ctx).WithField("component", "lock-sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithField("interval", interval.String()).Info("seat lock sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("seat lock sweeper stopped")
			return nil
		case <-ticker.C:
			keys, err := table.SweepExpired(ctx)
			if err != nil {
				logger.WithError(err).Warn("sweeping expired seat locks failed")
				continue
			}
			if len(keys) > 0 {
				logger.WithFields(logrus.Fields{"released": len(keys)}).Debug("expired seat locks released")
			}
		}
	}
}
