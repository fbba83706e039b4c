// Package planning is the application service shared by the API server,
// the task worker and the CLI. It serialises calendar-changing operations
// behind a single-writer lock and traces every operation.
package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/frog-planner/internal/lock"
	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ScheduleLockKey guards every operation that rewrites the calendar
const ScheduleLockKey = "schedule"

// JobStore is the storage the service works against
type JobStore interface {
	planner.Store
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Service coordinates job storage, the scheduler and the schedule lock
type Service struct {
	store     JobStore
	scheduler *planner.Scheduler
	settings  planner.Settings
	locker    lock.Locker
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
	newID     func() uuid.UUID
}

// Option configures a Service
type Option func(*Service)

// WithLocker sets the lock used to serialise scheduling runs
func WithLocker(locker lock.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the current time for the service and its scheduler
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracer overrides the tracer, mainly for tests
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithIDGenerator overrides how new job IDs are generated
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New creates a planning service. Without WithLocker runs are only
// serialised inside this process.
func New(store JobStore, settings planner.Settings, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("planning: store is required")
	}
	s := &Service{
		store:    store,
		settings: settings,
		locker:   lock.NewLocalLocker(),
		tracer:   telemetry.Tracer("planning"),
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}

	scheduler, err := planner.New(store, settings,
		planner.WithClock(s.now),
		planner.WithLogger(s.logger.Named("planner")),
		planner.WithIDGenerator(s.newID),
	)
	if err != nil {
		return nil, err
	}
	s.scheduler = scheduler
	return s, nil
}

// Settings returns the calendar rules in use
func (s *Service) Settings() planner.Settings {
	return s.settings
}

// today is the current calendar day in the planner's time zone
func (s *Service) today() models.Date {
	return s.settings.Today(s.now())
}

// withScheduleLock runs fn while holding the schedule lock. lock.ErrLockHeld
// is returned unchanged when another run is in progress.
func (s *Service) withScheduleLock(ctx context.Context, fn func(ctx context.Context) error) error {
	lease, err := s.locker.Acquire(ctx, ScheduleLockKey)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return err
		}
		return fmt.Errorf("failed to acquire schedule lock: %w", err)
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logger.Warn("schedule_lock_release_failed", zap.Error(releaseErr))
		}
	}()
	return fn(ctx)
}
