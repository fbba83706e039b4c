package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/frog-planner/internal/lock"
	logpkg "github.com/benvon/frog-planner/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepTimeout bounds a single rollback pass
const DefaultSweepTimeout = time.Minute

// Rollbacker returns elapsed, uncompleted placements to unscheduled
type Rollbacker interface {
	RollbackElapsed(ctx context.Context) (int64, error)
}

// Sweeper periodically rolls back elapsed placements on a cron schedule
type Sweeper struct {
	mu      sync.Mutex
	c       *cron.Cron
	parser  cron.Parser
	spec    string
	loc     *time.Location
	target  Rollbacker
	timeout time.Duration
	logger  *zap.Logger
}

// NewSweeper validates spec (standard five-field cron or a descriptor such as
// "@every 15m") and returns a stopped sweeper
func NewSweeper(target Rollbacker, spec string, loc *time.Location, logger *zap.Logger) (*Sweeper, error) {
	if target == nil {
		return nil, errors.New("sweeper: rollback target is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid rollback schedule %q: %w", spec, err)
	}
	return &Sweeper{
		parser:  parser,
		spec:    spec,
		loc:     loc,
		target:  target,
		timeout: DefaultSweepTimeout,
		logger:  logger,
	}, nil
}

// Start begins triggering sweeps; calling it twice is a no-op
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger.Sugar()})),
	)
	if _, err := c.AddFunc(s.spec, func() { s.Sweep(context.WithoutCancel(ctx)) }); err != nil {
		return fmt.Errorf("failed to register rollback sweep: %w", err)
	}
	c.Start()
	s.c = c
	s.logger.Info("rollback_sweeper_started", zap.String("schedule", s.spec), zap.String("tz", s.loc.String()))
	return nil
}

// Stop stops triggering and waits for a running sweep or ctx, whichever ends first
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("rollback_sweeper_stopped")
}

// Sweep runs one rollback pass. A pass that finds the schedule lock held is
// skipped; the next tick tries again.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.target.RollbackElapsed(ctx)
	switch {
	case errors.Is(err, lock.ErrLockHeld):
		s.logger.Debug("rollback_sweep_skipped_lock_held")
	case err != nil:
		s.logger.Error("rollback_sweep_failed", zap.String("error", logpkg.SanitizeError(err)))
	default:
		s.logger.Debug("rollback_sweep_completed", zap.Int64("rolled_back", n))
	}
}

// cronLogger adapts zap to cron's logr-style logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
