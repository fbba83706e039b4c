package planner

import (
	"context"

	"github.com/benvon/frog-planner/internal/models"
)

// Store is the persistence the scheduler reads bookings from and writes placements to
type Store interface {
	Query(ctx context.Context, filter models.JobFilter, order models.JobOrder) ([]*models.Job, error)
	// Save inserts or updates the job by ID
	Save(ctx context.Context, job *models.Job) error
	Delete(ctx context.Context, job *models.Job) error
	BulkUpdate(ctx context.Context, filter models.JobFilter, update models.JobUpdate) (int64, error)
}

// Transactor is implemented by stores that can apply several writes atomically.
// Splitting a job into chunk rows goes through WithinTx when it is available.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
