package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/lock"
	logpkg "github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultLockRetryDelay is how long a task waits when another run holds the schedule lock
	DefaultLockRetryDelay = 30 * time.Second
	// DefaultRetryBaseDelay is the first backoff step for failed tasks
	DefaultRetryBaseDelay = 5 * time.Second
	maxRetryDelay         = 10 * time.Minute
)

// Planning is the part of the planning service driven by queued tasks
type Planning interface {
	ScheduleAll(ctx context.Context) (*planner.RunResult, error)
	ScheduleOne(ctx context.Context, id uuid.UUID) (*planner.RunResult, error)
	RollbackElapsed(ctx context.Context) (int64, error)
}

// TaskProcessor executes one task
type TaskProcessor func(ctx context.Context, task *queue.Task) error

// Processor dispatches queued tasks to the planning service and decides
// between ack, delayed retry and dead-lettering
type Processor struct {
	planning       Planning
	taskQueue      queue.TaskQueue
	logger         *zap.Logger
	registry       map[queue.TaskType]TaskProcessor
	lockRetryDelay time.Duration
	retryBaseDelay time.Duration
}

// NewProcessor creates a processor with the scheduling task types registered.
// taskQueue is used to re-enqueue delayed retries and may be nil.
func NewProcessor(planning Planning, taskQueue queue.TaskQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		planning:       planning,
		taskQueue:      taskQueue,
		logger:         logger,
		registry:       make(map[queue.TaskType]TaskProcessor),
		lockRetryDelay: DefaultLockRetryDelay,
		retryBaseDelay: DefaultRetryBaseDelay,
	}
	p.RegisterProcessor(queue.TaskTypeScheduleAll, p.processScheduleAll)
	p.RegisterProcessor(queue.TaskTypeScheduleJob, p.processScheduleJob)
	p.RegisterProcessor(queue.TaskTypeRollbackElapsed, p.processRollback)
	return p
}

// RegisterProcessor registers or replaces the processor for a task type
func (p *Processor) RegisterProcessor(typ queue.TaskType, proc TaskProcessor) {
	p.registry[typ] = proc
}

func (p *Processor) processScheduleAll(ctx context.Context, _ *queue.Task) error {
	result, err := p.planning.ScheduleAll(ctx)
	if err != nil {
		return err
	}
	p.logRun(result)
	return nil
}

func (p *Processor) processScheduleJob(ctx context.Context, task *queue.Task) error {
	if task.JobID == nil {
		return permanent(errors.New("job_id is required for schedule_job task"))
	}
	result, err := p.planning.ScheduleOne(ctx, *task.JobID)
	if err != nil {
		return err
	}
	p.logRun(result)
	return nil
}

func (p *Processor) processRollback(ctx context.Context, _ *queue.Task) error {
	_, err := p.planning.RollbackElapsed(ctx)
	return err
}

func (p *Processor) logRun(result *planner.RunResult) {
	if result == nil {
		return
	}
	p.logger.Info("scheduling_task_completed",
		zap.Int("placements", len(result.Placements)),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Int("skipped", len(result.Skipped)),
	)
}

// ProcessTask runs one delivered task and settles the message
func (p *Processor) ProcessTask(ctx context.Context, msg queue.MessageInterface) error {
	task := msg.GetTask()
	taskID := logpkg.SanitizeID(task.ID.String())

	// Without the delayed-message plugin a retry may arrive early
	if task.NotBefore != nil {
		if err := waitUntil(ctx, *task.NotBefore); err != nil {
			p.nack(msg, taskID, true)
			return err
		}
	}
	if task.IsExpired() {
		p.logger.Info("task_expired", zap.String("task_id", taskID))
		p.nack(msg, taskID, false)
		return nil
	}

	proc, ok := p.registry[task.Type]
	if !ok {
		p.logger.Error("unknown_task_type",
			zap.String("task_id", taskID),
			zap.String("task_type", logpkg.SanitizeString(string(task.Type), 64)),
		)
		p.nack(msg, taskID, false)
		return fmt.Errorf("unknown task type: %s", task.Type)
	}

	err := proc(ctx, task)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack task: %w", ackErr)
		}
		return nil
	}
	return p.handleTaskError(ctx, msg, task, err)
}

// handleTaskError settles a failed task. Lock contention is retried without
// counting against the task; a missing job is dropped; invalid input and
// exhausted retries go to the DLQ.
func (p *Processor) handleTaskError(ctx context.Context, msg queue.MessageInterface, task *queue.Task, err error) error {
	taskID := logpkg.SanitizeID(task.ID.String())
	fields := []zap.Field{
		zap.String("task_id", taskID),
		zap.String("task_type", string(task.Type)),
		zap.String("error", logpkg.SanitizeError(err)),
	}

	var inputErr *planner.InputValidationError
	var permErr *permanentError
	switch {
	case errors.Is(err, lock.ErrLockHeld):
		p.logger.Info("schedule_lock_busy_retrying", append(fields, zap.Duration("delay", p.lockRetryDelay))...)
		return p.requeue(ctx, msg, task.Delay(p.lockRetryDelay))

	case errors.Is(err, database.ErrJobNotFound):
		p.logger.Warn("task_job_not_found", fields...)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack task: %w", ackErr)
		}
		return nil

	case errors.As(err, &inputErr), errors.As(err, &permErr):
		p.logger.Error("task_rejected", fields...)
		p.nack(msg, taskID, false)
		return fmt.Errorf("task rejected: %w", err)
	}

	if !task.CanRetry() {
		p.logger.Error("task_failed_max_retries", append(fields, zap.Int("max_retries", task.MaxRetries))...)
		p.nack(msg, taskID, false)
		return fmt.Errorf("task failed (max retries): %w", err)
	}

	delay := p.retryDelay(task.RetryCount)
	retry := task.Delay(delay)
	retry.IncrementRetry()
	p.logger.Warn("task_failed_retrying", append(fields,
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", task.MaxRetries),
		zap.Duration("delay", delay),
	)...)
	if requeueErr := p.requeue(ctx, msg, retry); requeueErr != nil {
		return requeueErr
	}
	return fmt.Errorf("task failed (will retry): %w", err)
}

// requeue acks msg and publishes next in its place. Without a queue, or when
// publishing fails, the message is returned to the broker instead.
func (p *Processor) requeue(ctx context.Context, msg queue.MessageInterface, next *queue.Task) error {
	taskID := logpkg.SanitizeID(next.ID.String())
	if p.taskQueue == nil {
		p.nack(msg, taskID, true)
		return nil
	}
	if err := p.taskQueue.Enqueue(ctx, next); err != nil {
		p.logger.Error("failed_to_requeue_task", zap.String("task_id", taskID), zap.String("error", logpkg.SanitizeError(err)))
		p.nack(msg, taskID, true)
		return fmt.Errorf("failed to re-enqueue task: %w", err)
	}
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack task after re-enqueue: %w", err)
	}
	return nil
}

func (p *Processor) nack(msg queue.MessageInterface, taskID string, requeue bool) {
	if err := msg.Nack(requeue); err != nil {
		p.logger.Warn("failed_to_nack_task",
			zap.String("task_id", taskID),
			zap.Bool("requeue", requeue),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
}

// retryDelay doubles the base delay per attempt up to maxRetryDelay
func (p *Processor) retryDelay(attempt int) time.Duration {
	delay := p.retryBaseDelay
	for i := 0; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError marks a task that can never succeed
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }
