package database

import (
	"context"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/google/uuid"
)

// JobRepositoryInterface defines the interface for job repository operations
// This interface enables better testability by allowing mock implementations
type JobRepositoryInterface interface {
	planner.Store
	planner.Transactor
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Ensure concrete types implement the interfaces
var (
	_ JobRepositoryInterface = (*JobRepository)(nil)
	_ planner.Store          = (*JobRepository)(nil)
	_ planner.Transactor     = (*JobRepository)(nil)
)
