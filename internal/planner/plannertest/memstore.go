// Package plannertest provides an in-memory job store for tests.
package plannertest

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/google/uuid"
)

// ErrStoreDown is the error injected by FailSave and QueryErr in tests
var ErrStoreDown = errors.New("store unavailable")

// MemStore is an in-memory planner.Store and planner.Transactor.
// Jobs are copied on the way in and out so callers cannot alias stored state.
type MemStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.Job
	order   []uuid.UUID
	saves   int
	deletes int
	txs     int

	// FailSave makes Save fail with ErrStoreDown for matching jobs
	FailSave func(job *models.Job) bool
	// QueryErr is returned by Query when set
	QueryErr error
}

var _ planner.Store = (*MemStore)(nil)
var _ planner.Transactor = (*MemStore)(nil)

// NewMemStore creates a store holding copies of jobs
func NewMemStore(jobs ...*models.Job) *MemStore {
	s := &MemStore{jobs: make(map[uuid.UUID]*models.Job)}
	for _, job := range jobs {
		s.put(job)
	}
	return s
}

func (s *MemStore) put(job *models.Job) {
	if _, ok := s.jobs[job.ID]; !ok {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = Clone(job)
}

// Query returns copies of matching jobs in insertion or schedule order
func (s *MemStore) Query(_ context.Context, filter models.JobFilter, order models.JobOrder) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	var out []*models.Job
	for _, id := range s.order {
		job, ok := s.jobs[id]
		if !ok || !Matches(job, filter) {
			continue
		}
		out = append(out, Clone(job))
	}
	if order == models.OrderBySchedule {
		slices.SortStableFunc(out, compareSchedule)
	}
	return out, nil
}

func compareSchedule(a, b *models.Job) int {
	switch {
	case a.IsPlaced() && !b.IsPlaced():
		return -1
	case !a.IsPlaced() && b.IsPlaced():
		return 1
	case !a.IsPlaced():
		return 0
	case a.Date.Before(*b.Date):
		return -1
	case a.Date.After(*b.Date):
		return 1
	default:
		return int(*a.StartTime - *b.StartTime)
	}
}

// GetByID returns a copy of the job or database.ErrJobNotFound
func (s *MemStore) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if job := s.Get(id); job != nil {
		return job, nil
	}
	return nil, database.ErrJobNotFound
}

// Save upserts a copy of job
func (s *MemStore) Save(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil && s.FailSave(job) {
		return ErrStoreDown
	}
	s.saves++
	s.put(job)
	return nil
}

// Delete removes job by ID
func (s *MemStore) Delete(ctx context.Context, job *models.Job) error {
	return s.DeleteByID(ctx, job.ID)
}

// DeleteByID removes the job or returns database.ErrJobNotFound
func (s *MemStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return database.ErrJobNotFound
	}
	s.deletes++
	delete(s.jobs, id)
	s.order = slices.DeleteFunc(s.order, func(other uuid.UUID) bool { return other == id })
	return nil
}

// BulkUpdate applies update to every matching job
func (s *MemStore) BulkUpdate(_ context.Context, filter models.JobFilter, update models.JobUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.IsEmpty() {
		return 0, nil
	}
	var n int64
	for _, job := range s.jobs {
		if !Matches(job, filter) {
			continue
		}
		if update.ClearSchedule {
			job.ClearSchedule()
		}
		if update.Completed != nil {
			job.Completed = *update.Completed
		}
		n++
	}
	return n, nil
}

// WithinTx restores the previous contents when fn fails
func (s *MemStore) WithinTx(_ context.Context, fn func(tx planner.Store) error) error {
	s.mu.Lock()
	s.txs++
	snapshot := make(map[uuid.UUID]*models.Job, len(s.jobs))
	for id, job := range s.jobs {
		snapshot[id] = Clone(job)
	}
	order := slices.Clone(s.order)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.jobs, s.order = snapshot, order
		s.mu.Unlock()
		return err
	}
	return nil
}

// All returns every job in schedule order
func (s *MemStore) All() []*models.Job {
	jobs, _ := s.Query(context.Background(), models.JobFilter{}, models.OrderBySchedule)
	return jobs
}

// Get returns a copy of the job or nil
func (s *MemStore) Get(id uuid.UUID) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	return Clone(job)
}

// Saves reports how many successful Save calls were made
func (s *MemStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Deletes reports how many rows were deleted
func (s *MemStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// Txs reports how many transactions were opened
func (s *MemStore) Txs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

// Matches reports whether job satisfies filter the way the SQL repository does
func Matches(job *models.Job, f models.JobFilter) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, job.ID) {
		return false
	}
	if slices.Contains(f.ExcludeIDs, job.ID) {
		return false
	}
	if f.Unscheduled && job.StartTime != nil {
		return false
	}
	if f.Placed && !job.IsPlaced() {
		return false
	}
	if f.DateFrom != nil && (job.Date == nil || job.Date.Before(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && (job.Date == nil || job.Date.After(*f.DateTo)) {
		return false
	}
	if f.Completed != nil && job.Completed != *f.Completed {
		return false
	}
	if f.EndedBy != nil {
		if job.EndTime == nil || job.Date == nil {
			return false
		}
		if job.Date.After(f.EndedBy.Date) || (*job.Date == f.EndedBy.Date && *job.EndTime > f.EndedBy.Clock) {
			return false
		}
	}
	return true
}

// Clone deep-copies a job
func Clone(job *models.Job) *models.Job {
	c := *job
	if job.Date != nil {
		d := *job.Date
		c.Date = &d
	}
	if job.StartTime != nil {
		st := *job.StartTime
		c.StartTime = &st
	}
	if job.EndTime != nil {
		et := *job.EndTime
		c.EndTime = &et
	}
	if job.DueDate != nil {
		dd := *job.DueDate
		c.DueDate = &dd
	}
	return &c
}
