package planning

import (
	"context"
	"fmt"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/telemetry"
	"github.com/benvon/frog-planner/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// JobInput is the data needed to create a job. Supplying both Date and
// StartTime places the job at that time; otherwise it starts unscheduled.
type JobInput struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Urgency       models.Level      `json:"urgency"`
	Importance    models.Level      `json:"importance"`
	DurationHours decimal.Decimal   `json:"duration_hours"`
	IsFrog        bool              `json:"is_frog"`
	CanBeDivided  bool              `json:"can_be_divided"`
	Date          *models.Date      `json:"date,omitempty"`
	StartTime     *models.ClockTime `json:"start_time,omitempty"`
	DueDate       *models.Date      `json:"due_date,omitempty"`
}

// JobPatch changes selected fields of a job; nil fields are left alone
type JobPatch struct {
	Title         *string           `json:"title,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Urgency       *models.Level     `json:"urgency,omitempty"`
	Importance    *models.Level     `json:"importance,omitempty"`
	DurationHours *decimal.Decimal  `json:"duration_hours,omitempty"`
	IsFrog        *bool             `json:"is_frog,omitempty"`
	CanBeDivided  *bool             `json:"can_be_divided,omitempty"`
	Date          *models.Date      `json:"date,omitempty"`
	StartTime     *models.ClockTime `json:"start_time,omitempty"`
	DueDate       *models.Date      `json:"due_date,omitempty"`
	// Unschedule clears the placement; Date and StartTime are then ignored
	Unschedule bool `json:"unschedule,omitempty"`
}

// JobView is a job annotated with its derived tier and state
type JobView struct {
	*models.Job
	Tier  models.Tier     `json:"tier"`
	State models.JobState `json:"state"`
}

func viewOf(job *models.Job) JobView {
	return JobView{Job: job, Tier: planner.TierOf(job), State: job.State()}
}

// Create validates and stores a new job
func (s *Service) Create(ctx context.Context, input JobInput) (job *models.Job, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	job = &models.Job{
		ID:            s.newID(),
		Title:         validation.SanitizeText(input.Title),
		Description:   validation.SanitizeText(input.Description),
		Urgency:       input.Urgency,
		Importance:    input.Importance,
		DurationHours: input.DurationHours,
		IsFrog:        input.IsFrog,
		CanBeDivided:  input.CanBeDivided,
		Date:          input.Date,
		StartTime:     input.StartTime,
		DueDate:       input.DueDate,
	}
	setPlacement(job)
	if err := validation.CheckJob(job); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	span.SetAttributes(attribute.String("job.id", job.ID.String()))
	s.logger.Info("job_created",
		zap.String("job_id", job.ID.String()),
		zap.Bool("placed", job.IsPlaced()),
	)
	return job, nil
}

// Get returns one job with its tier
func (s *Service) Get(ctx context.Context, id uuid.UUID) (JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	return viewOf(job), nil
}

// Update applies patch to the job. Changing the duration of a placed job
// moves its end time with it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch JobPatch) (job *models.Job, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.Update")
	span.SetAttributes(attribute.String("job.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	job, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		job.Title = validation.SanitizeText(*patch.Title)
	}
	if patch.Description != nil {
		job.Description = validation.SanitizeText(*patch.Description)
	}
	if patch.Urgency != nil {
		job.Urgency = *patch.Urgency
	}
	if patch.Importance != nil {
		job.Importance = *patch.Importance
	}
	if patch.DurationHours != nil {
		job.DurationHours = *patch.DurationHours
	}
	if patch.IsFrog != nil {
		job.IsFrog = *patch.IsFrog
	}
	if patch.CanBeDivided != nil {
		job.CanBeDivided = *patch.CanBeDivided
	}
	if patch.DueDate != nil {
		job.DueDate = patch.DueDate
	}
	if patch.Unschedule {
		job.ClearSchedule()
	} else {
		if patch.Date != nil {
			job.Date = patch.Date
		}
		if patch.StartTime != nil {
			job.StartTime = patch.StartTime
		}
	}
	setPlacement(job)

	if err := validation.CheckJob(job); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	s.logger.Info("job_updated", zap.String("job_id", job.ID.String()))
	return job, nil
}

// Delete removes a job in any state
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "planning.Delete")
	span.SetAttributes(attribute.String("job.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job_deleted", zap.String("job_id", id.String()))
	return nil
}

// Complete marks a job done. Its placement is kept as a record.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (job *models.Job, err error) {
	ctx, span := s.tracer.Start(ctx, "planning.Complete")
	span.SetAttributes(attribute.String("job.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	job, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Completed {
		return job, nil
	}
	job.Completed = true
	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}
	s.logger.Info("job_completed", zap.String("job_id", job.ID.String()))
	return job, nil
}

// setPlacement derives the end time of a fully placed job and drops a stale
// end time from a partially placed one so validation reports the gap
func setPlacement(job *models.Job) {
	if job.IsPlaced() {
		job.Place(*job.Date, *job.StartTime)
		return
	}
	job.EndTime = nil
}
