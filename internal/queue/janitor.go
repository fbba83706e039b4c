package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultSweepTimeout = 2 * time.Minute

// DeadLetterJanitor trims planning tasks that have sat in the dead letter
// queue longer than the retention window.
type DeadLetterJanitor struct {
	purger    DLQPurger
	every     time.Duration
	retention time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDeadLetterJanitor wires a janitor to purger. A nil purger makes every sweep a no-op.
func NewDeadLetterJanitor(purger DLQPurger, every, retention time.Duration, logger *zap.Logger) *DeadLetterJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterJanitor{
		purger:    purger,
		every:     every,
		retention: retention,
		timeout:   defaultSweepTimeout,
		logger:    logger,
	}
}

// Run sweeps once immediately and then on every tick, returning when ctx ends.
func (j *DeadLetterJanitor) Run(ctx context.Context) error {
	j.sweepAndLog(ctx)

	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweepAndLog(ctx)
		}
	}
}

func (j *DeadLetterJanitor) sweepAndLog(ctx context.Context) {
	purged, err := j.Sweep(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		j.logger.Error("dead_letter_sweep_failed", zap.Error(err))
	case purged > 0:
		j.logger.Info("dead_letter_sweep_purged",
			zap.Int("tasks", purged),
			zap.Duration("retention", j.retention),
		)
	}
}

// Sweep runs a single bounded purge and returns how many tasks were dropped.
func (j *DeadLetterJanitor) Sweep(ctx context.Context) (int, error) {
	if j.purger == nil {
		return 0, nil
	}
	sweepCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	purged, err := j.purger.PurgeOlderThan(sweepCtx, j.retention)
	if err != nil {
		return purged, fmt.Errorf("failed to purge dead letter queue: %w", err)
	}
	return purged, nil
}
