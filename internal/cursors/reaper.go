package cursors

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// reapHorizonFactor keeps rows well past the read cutoff so a session that
// resumes pulsing reuses its row instead of re-inserting.
const reapHorizonFactor = 10

// Reaper periodically deletes cursor rows that fell far behind the
// staleness window. Reads already filter those rows out, so reaping only
// bounds storage growth and never changes what clients see.
type Reaper struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger
}

func NewReaper(service *Service, interval time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{service: service, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, reaping once per interval. An
// interval of zero disables reaping entirely.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reaped, err := r.ReapOnce(ctx); err != nil {
				r.logger.Warn("cursor reap failed", zap.Error(err))
			} else if reaped > 0 {
				r.logger.Debug("reaped stale cursors", zap.Int64("rows", reaped))
			}
		}
	}
}

// ReapOnce deletes every cursor row older than the reap horizon and
// reports how many rows went away.
func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	horizon := r.service.staleWindow.Milliseconds() * reapHorizonFactor
	cutoff := r.service.clock().UTC().UnixMilli() - horizon

	result := r.service.db.WithContext(ctx).
		Where("updated_at_ms < ?", cutoff).
		Delete(&Cursor{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
