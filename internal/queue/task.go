package queue

import (
	"time"

	"github.com/google/uuid"
)

// TaskType represents the kind of scheduling work a task asks for
type TaskType string

const (
	// TaskTypeScheduleAll runs the scheduler over every unscheduled job
	TaskTypeScheduleAll TaskType = "schedule_all"
	// TaskTypeScheduleJob runs the scheduler over a single job
	TaskTypeScheduleJob TaskType = "schedule_job"
	// TaskTypeRollbackElapsed returns elapsed, uncompleted placements to unscheduled
	TaskTypeRollbackElapsed TaskType = "rollback_elapsed"
)

// DefaultMaxRetries is how often a task is redelivered before it goes to the DLQ
const DefaultMaxRetries = 3

// Task represents a unit of background work in the queue
type Task struct {
	ID         uuid.UUID  `json:"id"`
	Type       TaskType   `json:"type"`
	JobID      *uuid.UUID `json:"job_id,omitempty"`     // Only for schedule_job
	NotBefore  *time.Time `json:"not_before,omitempty"` // Earliest time to process task (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // Latest time to process task (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewTask creates a new task
func NewTask(taskType TaskType, jobID *uuid.UUID) *Task {
	return &Task{
		ID:         uuid.New(),
		Type:       taskType,
		JobID:      jobID,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// ShouldProcess checks if the task should be processed now
func (t *Task) ShouldProcess() bool {
	return t.shouldProcessAt(time.Now())
}

func (t *Task) shouldProcessAt(now time.Time) bool {
	if t.NotBefore != nil && now.Before(*t.NotBefore) {
		return false
	}
	if t.NotAfter != nil && now.After(*t.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the task has expired
func (t *Task) IsExpired() bool {
	if t.NotAfter == nil {
		return false
	}
	return time.Now().After(*t.NotAfter)
}

// CanRetry checks if the task can be retried
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// IncrementRetry increments the retry count
func (t *Task) IncrementRetry() {
	t.RetryCount++
}

// Delay returns a copy of the task that should not run before d from now
func (t *Task) Delay(d time.Duration) *Task {
	next := *t
	notBefore := time.Now().Add(d)
	next.NotBefore = &notBefore
	return &next
}
