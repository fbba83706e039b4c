package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrJobNotFound is returned when no job row has the requested ID
var ErrJobNotFound = errors.New("job not found")

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const jobColumns = `id, title, description, urgency, importance, duration_hours, is_frog, can_be_divided,
	date, start_time, end_time, due_date, completed, created_at, updated_at`

// JobRepository handles job database operations
type JobRepository struct {
	db     *DB
	q      querier
	logger *zap.Logger
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db, q: db, logger: zap.NewNop()}
}

// SetLogger sets the logger for this repository
func (r *JobRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Query returns the jobs matching filter in the requested order
func (r *JobRepository) Query(ctx context.Context, filter models.JobFilter, order models.JobOrder) ([]*models.Job, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + jobColumns + ` FROM jobs` + where + orderClause(order)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

// Save inserts the job or, when the ID already exists, overwrites it
func (r *JobRepository) Save(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			urgency = EXCLUDED.urgency,
			importance = EXCLUDED.importance,
			duration_hours = EXCLUDED.duration_hours,
			is_frog = EXCLUDED.is_frog,
			can_be_divided = EXCLUDED.can_be_divided,
			date = EXCLUDED.date,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			due_date = EXCLUDED.due_date,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	err := r.q.QueryRowContext(ctx, query,
		job.ID,
		job.Title,
		job.Description,
		int(job.Urgency),
		int(job.Importance),
		job.DurationHours,
		job.IsFrog,
		job.CanBeDivided,
		job.Date,
		job.StartTime,
		job.EndTime,
		job.DueDate,
		job.Completed,
		createdAt,
		now,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	r.logger.Debug("job_saved",
		zap.String("job_id", job.ID.String()),
		zap.String("state", string(job.State())),
	)
	return nil
}

// Delete removes the job by ID
func (r *JobRepository) Delete(ctx context.Context, job *models.Job) error {
	return r.DeleteByID(ctx, job.ID)
}

// DeleteByID removes the job with the given ID
func (r *JobRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// BulkUpdate applies update to every job matching filter and returns how many rows changed
func (r *JobRepository) BulkUpdate(ctx context.Context, filter models.JobFilter, update models.JobUpdate) (int64, error) {
	if update.IsEmpty() {
		return 0, nil
	}

	where, args := buildWhere(filter)
	set, args := buildSet(update, args)
	query := `UPDATE jobs SET ` + set + where

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// WithinTx runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (r *JobRepository) WithinTx(ctx context.Context, fn func(tx planner.Store) error) error {
	if _, inTx := r.q.(*sql.Tx); inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &JobRepository{db: r.db, q: tx, logger: r.logger}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("failed_to_rollback_transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	var urgency, importance int
	err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Description,
		&urgency,
		&importance,
		&job.DurationHours,
		&job.IsFrog,
		&job.CanBeDivided,
		&job.Date,
		&job.StartTime,
		&job.EndTime,
		&job.DueDate,
		&job.Completed,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Urgency = models.Level(urgency)
	job.Importance = models.Level(importance)
	return job, nil
}

// buildWhere turns a filter into a WHERE clause with $n placeholders
func buildWhere(f models.JobFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.IDs) > 0 {
		conds = append(conds, fmt.Sprintf("id = ANY(%s::uuid[])", arg(pq.Array(uuidStrings(f.IDs)))))
	}
	if len(f.ExcludeIDs) > 0 {
		conds = append(conds, fmt.Sprintf("id <> ALL(%s::uuid[])", arg(pq.Array(uuidStrings(f.ExcludeIDs)))))
	}
	if f.Unscheduled {
		conds = append(conds, "start_time IS NULL")
	}
	if f.Placed {
		conds = append(conds, "date IS NOT NULL AND start_time IS NOT NULL")
	}
	if f.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("date >= %s", arg(*f.DateFrom)))
	}
	if f.DateTo != nil {
		conds = append(conds, fmt.Sprintf("date <= %s", arg(*f.DateTo)))
	}
	if f.Completed != nil {
		conds = append(conds, fmt.Sprintf("completed = %s", arg(*f.Completed)))
	}
	if f.EndedBy != nil {
		day := arg(f.EndedBy.Date)
		clock := arg(f.EndedBy.Clock)
		conds = append(conds, fmt.Sprintf(
			"end_time IS NOT NULL AND (date < %s OR (date = %s AND end_time <= %s))", day, day, clock))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildSet renders the SET list of a bulk update, continuing the placeholder numbering of args
func buildSet(u models.JobUpdate, args []any) (string, []any) {
	var sets []string
	if u.ClearSchedule {
		sets = append(sets, "date = NULL", "start_time = NULL", "end_time = NULL")
	}
	if u.Completed != nil {
		args = append(args, *u.Completed)
		sets = append(sets, fmt.Sprintf("completed = $%d", len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	return strings.Join(sets, ", "), args
}

func orderClause(order models.JobOrder) string {
	switch order {
	case models.OrderBySchedule:
		return " ORDER BY date ASC NULLS LAST, start_time ASC NULLS LAST, created_at ASC"
	default:
		return " ORDER BY created_at ASC, id ASC"
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
