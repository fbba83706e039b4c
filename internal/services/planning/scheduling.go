package planning

import (
	"context"
	"fmt"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ScheduleAll runs the scheduler over every uncompleted job that has no start time
func (s *Service) ScheduleAll(ctx context.Context) (result *planner.RunResult, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.ScheduleAll")
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.withScheduleLock(ctx, func(ctx context.Context) error {
		notCompleted := false
		jobs, err := s.store.Query(ctx, models.JobFilter{Unscheduled: true, Completed: &notCompleted}, models.OrderByCreated)
		if err != nil {
			return fmt.Errorf("failed to load unscheduled jobs: %w", err)
		}
		result, err = s.scheduler.ScheduleJobs(ctx, jobs)
		return err
	})
	if err != nil {
		return nil, err
	}
	annotateRun(span, result)
	return result, nil
}

// ScheduleOne runs the scheduler for a single job. A job that is already
// placed or completed is reported as skipped.
func (s *Service) ScheduleOne(ctx context.Context, id uuid.UUID) (result *planner.RunResult, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.ScheduleOne")
	span.SetAttributes(attribute.String("job.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.withScheduleLock(ctx, func(ctx context.Context) error {
		job, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result, err = s.scheduler.ScheduleJobs(ctx, []*models.Job{job})
		return err
	})
	if err != nil {
		return nil, err
	}
	annotateRun(span, result)
	return result, nil
}

// Reset returns one job to the unscheduled state
func (s *Service) Reset(ctx context.Context, id uuid.UUID) (job *models.Job, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.Reset")
	span.SetAttributes(attribute.String("job.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.withScheduleLock(ctx, func(ctx context.Context) error {
		job, err = s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		job.ClearSchedule()
		if err := s.store.Save(ctx, job); err != nil {
			return fmt.Errorf("failed to reset job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("job_reset", zap.String("job_id", id.String()))
	return job, nil
}

// ResetAll clears the placement of every job, or only of uncompleted jobs
// when onlyOpen is set, and returns the number of rows changed
func (s *Service) ResetAll(ctx context.Context, onlyOpen bool) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.ResetAll")
	span.SetAttributes(attribute.Bool("only_open", onlyOpen))
	defer func() { telemetry.EndSpan(span, err) }()

	filter := models.JobFilter{Placed: true}
	if onlyOpen {
		notCompleted := false
		filter.Completed = &notCompleted
	}
	err = s.withScheduleLock(ctx, func(ctx context.Context) error {
		n, err = s.store.BulkUpdate(ctx, filter, models.JobUpdate{ClearSchedule: true})
		if err != nil {
			return fmt.Errorf("failed to reset jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("jobs.reset", n))
	s.logger.Info("jobs_reset", zap.Int64("count", n), zap.Bool("only_open", onlyOpen))
	return n, nil
}

// RollbackElapsed returns uncompleted jobs whose end has passed to the
// unscheduled state so the next run can place them again
func (s *Service) RollbackElapsed(ctx context.Context) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.RollbackElapsed")
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.settings.MomentAt(s.now())
	notCompleted := false
	filter := models.JobFilter{Placed: true, Completed: &notCompleted, EndedBy: &now}

	err = s.withScheduleLock(ctx, func(ctx context.Context) error {
		n, err = s.store.BulkUpdate(ctx, filter, models.JobUpdate{ClearSchedule: true})
		if err != nil {
			return fmt.Errorf("failed to roll back elapsed jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("jobs.rolled_back", n))
	if n > 0 {
		s.logger.Info("elapsed_jobs_rolled_back", zap.Int64("count", n))
	}
	return n, nil
}

func annotateRun(span trace.Span, result *planner.RunResult) {
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("run.placements", len(result.Placements)),
		attribute.Int("run.unplaced", len(result.Unplaced)),
		attribute.Int("run.skipped", len(result.Skipped)),
	)
}
