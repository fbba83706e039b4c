package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	logpkg "github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Scheduler places unscheduled jobs into free time on upcoming days
type Scheduler struct {
	store    Store
	settings Settings
	now      func() time.Time
	newID    func() uuid.UUID
	logger   *zap.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the source of the current time
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for run reports
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator overrides how chunk rows get their IDs
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Scheduler) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New creates a scheduler over store using settings
func New(store Store, settings Settings, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("planner: store is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("planner: invalid settings: %w", err)
	}
	s := &Scheduler{
		store:    store,
		settings: settings,
		now:      time.Now,
		newID:    uuid.New,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings returns the calendar rules of the scheduler
func (s *Scheduler) Settings() Settings {
	return s.settings
}

// Placement records where one chunk was put
type Placement struct {
	// JobID is the row that carries the placement; for split jobs it is a new row
	JobID    uuid.UUID        `json:"job_id"`
	SourceID uuid.UUID        `json:"source_id"`
	Title    string           `json:"title"`
	Tier     models.Tier      `json:"tier"`
	Date     models.Date      `json:"date"`
	Start    models.ClockTime `json:"start_time"`
	End      models.ClockTime `json:"end_time"`
	Hours    decimal.Decimal  `json:"duration_hours"`
	IsFrog   bool             `json:"is_frog"`
}

// Unplaced describes a job that could not be fully placed within the horizon.
// Nothing is written for it and the job stays unscheduled.
type Unplaced struct {
	JobID  uuid.UUID   `json:"job_id"`
	Title  string      `json:"title"`
	Tier   models.Tier `json:"tier"`
	Chunks int         `json:"chunks"`
	// Fitted is how many leading chunks found a slot before one did not
	Fitted int `json:"fitted"`
}

// RunResult summarises a scheduling run
type RunResult struct {
	Placements []Placement `json:"placements"`
	Unplaced   []Unplaced  `json:"unplaced"`
	// Skipped lists input jobs left untouched because they are already placed or completed
	Skipped []uuid.UUID `json:"skipped"`
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Deleted int         `json:"deleted"`
}

// ScheduleJobs places every unplaced, uncompleted job in jobs.
//
// Jobs are taken in tier order; each is divided into chunks and every chunk
// goes into the first free slot that fits on the earliest eligible day of the
// horizon. A job that produced one chunk is updated in place. A split job is
// replaced by one new row per chunk, atomically and only when every chunk
// found a slot. Jobs that do not fit are reported in RunResult.Unplaced.
//
// Input problems are returned as *InputValidationError before anything is
// written. Storage errors abort the run and are returned wrapped.
func (s *Scheduler) ScheduleJobs(ctx context.Context, jobs []*models.Job) (*RunResult, error) {
	now := s.now().In(s.settings.location())
	today := models.DateOf(now)
	result := &RunResult{}

	inputIDs := make([]uuid.UUID, 0, len(jobs))
	pending := make([]*models.Job, 0, len(jobs))
	fixed := make([]*models.Job, 0)
	vErr := &InputValidationError{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		inputIDs = append(inputIDs, job.ID)
		if job.IsPlaced() || job.Completed {
			result.Skipped = append(result.Skipped, job.ID)
			if job.IsPlaced() {
				fixed = append(fixed, job)
			}
			continue
		}
		for field, msg := range validation.ValidateJob(job) {
			vErr.add(job.ID, field, msg)
		}
		pending = append(pending, job)
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	if len(pending) == 0 {
		return result, nil
	}

	state, err := s.loadBookings(ctx, today, inputIDs, fixed)
	if err != nil {
		return nil, err
	}

	for _, job := range Rank(pending) {
		// Jobs committed so far stay committed
		if err := ctx.Err(); err != nil {
			return result, err
		}
		chunks := Divide(job)
		placed := make([]booking, 0, len(chunks))
		for _, chunk := range chunks {
			b, ok := s.place(state, chunk, today, now)
			if !ok {
				break
			}
			placed = append(placed, b)
		}

		if len(placed) < len(chunks) {
			for _, b := range placed {
				state.release(b)
			}
			result.Unplaced = append(result.Unplaced, Unplaced{
				JobID:  job.ID,
				Title:  job.Title,
				Tier:   TierOf(job),
				Chunks: len(chunks),
				Fitted: len(placed),
			})
			s.logger.Info("job_unplaceable",
				zap.String("job_id", job.ID.String()),
				zap.String("title", logpkg.SanitizeTitle(job.Title)),
				zap.Int("chunks", len(chunks)),
				zap.Int("fitted", len(placed)),
				zap.Int("horizon_days", s.settings.HorizonDays),
			)
			continue
		}

		if err := s.commit(ctx, job, chunks, placed, result); err != nil {
			return result, err
		}
	}

	s.logger.Info("scheduling_run_completed",
		zap.Int("input_jobs", len(jobs)),
		zap.Int("placements", len(result.Placements)),
		zap.Int("unplaced_jobs", len(result.Unplaced)),
		zap.Int("skipped_jobs", len(result.Skipped)),
		zap.Int("rows_created", result.Created),
		zap.Int("rows_updated", result.Updated),
		zap.Int("rows_deleted", result.Deleted),
	)
	return result, nil
}

// loadBookings seeds the run calendar with everything already placed from today on
func (s *Scheduler) loadBookings(ctx context.Context, today models.Date, exclude []uuid.UUID, fixed []*models.Job) (*runState, error) {
	existing, err := s.store.Query(ctx, models.JobFilter{
		Placed:     true,
		DateFrom:   &today,
		ExcludeIDs: exclude,
	}, models.OrderBySchedule)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing bookings: %w", err)
	}

	state := newRunState()
	loc := s.settings.location()
	for _, job := range existing {
		state.seed(job, loc)
	}
	// Placed input jobs are excluded from the query but still hold their time
	for _, job := range fixed {
		if !job.Date.Before(today) {
			state.seed(job, loc)
		}
	}
	return state, nil
}

// place finds the first slot for chunk, books it in state and returns it
func (s *Scheduler) place(state *runState, chunk Chunk, today models.Date, now time.Time) (booking, bool) {
	length := chunk.Duration()
	for offset := 0; offset < s.settings.HorizonDays; offset++ {
		day := today.AddDays(offset)
		if !s.settings.available(day) {
			continue
		}
		if chunk.IsFrog && state.hasFrog(day) {
			continue
		}
		if state.hasTitle(chunk.Title, day) {
			continue
		}

		for _, slot := range s.settings.FreeSlots(day, state.intervals(day)) {
			start := slot.Start
			if day == today && start.Before(now) {
				start = ceilMinute(now)
			}
			end := start.Add(length)
			if end.After(slot.End) {
				continue
			}
			b := booking{
				day:   day,
				span:  Interval{Start: start, End: end},
				title: chunk.Title,
				frog:  chunk.IsFrog,
			}
			state.book(b)
			return b, true
		}
	}
	return booking{}, false
}

// commit writes the placements of one job to the store
func (s *Scheduler) commit(ctx context.Context, job *models.Job, chunks []Chunk, placed []booking, result *RunResult) error {
	tier := TierOf(job)

	if len(chunks) == 1 {
		b := placed[0]
		start, end := models.ClockOf(b.span.Start), models.ClockOf(b.span.End)
		day := b.day
		job.Date, job.StartTime, job.EndTime = &day, &start, &end
		if err := s.store.Save(ctx, job); err != nil {
			return fmt.Errorf("failed to save placement of job %s: %w", job.ID, err)
		}
		result.Updated++
		result.Placements = append(result.Placements, placementOf(job, job.ID, tier))
		return nil
	}

	rows := make([]*models.Job, len(chunks))
	for i, chunk := range chunks {
		rows[i] = s.chunkRow(job, chunk, placed[i])
	}
	write := func(store Store) error {
		for _, row := range rows {
			if err := store.Save(ctx, row); err != nil {
				return fmt.Errorf("failed to save chunk of job %s: %w", job.ID, err)
			}
		}
		if err := store.Delete(ctx, job); err != nil {
			return fmt.Errorf("failed to delete split job %s: %w", job.ID, err)
		}
		return nil
	}

	var err error
	if tx, ok := s.store.(Transactor); ok {
		err = tx.WithinTx(ctx, write)
	} else {
		err = write(s.store)
	}
	if err != nil {
		return err
	}

	result.Created += len(rows)
	result.Deleted++
	for _, row := range rows {
		result.Placements = append(result.Placements, placementOf(row, job.ID, tier))
	}
	s.logger.Debug("job_split_and_placed",
		zap.String("job_id", job.ID.String()),
		zap.Int("chunks", len(rows)),
	)
	return nil
}

// chunkRow builds the stored job that replaces one chunk of a split job
func (s *Scheduler) chunkRow(job *models.Job, chunk Chunk, b booking) *models.Job {
	start, end := models.ClockOf(b.span.Start), models.ClockOf(b.span.End)
	day := b.day
	row := &models.Job{
		ID:            s.newID(),
		Title:         chunk.Title,
		Description:   job.Description,
		Urgency:       chunk.Urgency,
		Importance:    chunk.Importance,
		DurationHours: chunk.Hours,
		IsFrog:        chunk.IsFrog,
		CanBeDivided:  chunk.CanBeDivided,
		Date:          &day,
		StartTime:     &start,
		EndTime:       &end,
	}
	if job.DueDate != nil {
		due := *job.DueDate
		row.DueDate = &due
	}
	return row
}

func placementOf(job *models.Job, sourceID uuid.UUID, tier models.Tier) Placement {
	return Placement{
		JobID:    job.ID,
		SourceID: sourceID,
		Title:    job.Title,
		Tier:     tier,
		Date:     *job.Date,
		Start:    *job.StartTime,
		End:      *job.EndTime,
		Hours:    job.DurationHours,
		IsFrog:   job.IsFrog,
	}
}

// ceilMinute rounds t up to the next whole minute
func ceilMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}
