package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/lock"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type mockMessage struct {
	task    *queue.Task
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetTask() *queue.Task {
	return m.task
}

var _ queue.MessageInterface = (*mockMessage)(nil)

type mockTaskQueue struct {
	mu         sync.Mutex
	enqueued   []*queue.Task
	enqueueErr error
}

func (m *mockTaskQueue) Enqueue(_ context.Context, task *queue.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, task)
	return nil
}

func (m *mockTaskQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockTaskQueue) Close() error {
	return nil
}

func (m *mockTaskQueue) HealthCheck(context.Context) error {
	return nil
}

var _ queue.TaskQueue = (*mockTaskQueue)(nil)

type mockPlanning struct {
	scheduleAllFunc func(ctx context.Context) (*planner.RunResult, error)
	scheduleOneFunc func(ctx context.Context, id uuid.UUID) (*planner.RunResult, error)
	rollbackFunc    func(ctx context.Context) (int64, error)
	calls           int
}

func (m *mockPlanning) ScheduleAll(ctx context.Context) (*planner.RunResult, error) {
	m.calls++
	if m.scheduleAllFunc != nil {
		return m.scheduleAllFunc(ctx)
	}
	return &planner.RunResult{}, nil
}

func (m *mockPlanning) ScheduleOne(ctx context.Context, id uuid.UUID) (*planner.RunResult, error) {
	m.calls++
	if m.scheduleOneFunc != nil {
		return m.scheduleOneFunc(ctx, id)
	}
	return &planner.RunResult{}, nil
}

func (m *mockPlanning) RollbackElapsed(ctx context.Context) (int64, error) {
	m.calls++
	if m.rollbackFunc != nil {
		return m.rollbackFunc(ctx)
	}
	return 0, nil
}

var errTransient = errors.New("connection reset")

func failingScheduleAll(err error) *mockPlanning {
	return &mockPlanning{
		scheduleAllFunc: func(context.Context) (*planner.RunResult, error) { return nil, err },
	}
}

func TestProcessor_ProcessTask(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name        string
		task        func() *queue.Task
		planning    *mockPlanning
		queueErr    error
		noQueue     bool
		wantErr     bool
		wantAck     bool
		wantNack    bool
		wantRequeue bool
		wantCalls   int
		validate    func(*testing.T, []*queue.Task)
	}{
		{
			name:      "schedule all succeeds",
			task:      func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleAll, nil) },
			planning:  &mockPlanning{},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name: "schedule job passes the job id",
			task: func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleJob, &jobID) },
			planning: &mockPlanning{
				scheduleOneFunc: func(_ context.Context, id uuid.UUID) (*planner.RunResult, error) {
					if id != jobID {
						return nil, errors.New("wrong job id")
					}
					return &planner.RunResult{}, nil
				},
			},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "rollback succeeds",
			task:      func() *queue.Task { return queue.NewTask(queue.TaskTypeRollbackElapsed, nil) },
			planning:  &mockPlanning{},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:     "schedule job without id goes to DLQ",
			task:     func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleJob, nil) },
			planning: &mockPlanning{},
			wantErr:  true,
			wantNack: true,
		},
		{
			name:     "unknown task type goes to DLQ",
			task:     func() *queue.Task { return queue.NewTask(queue.TaskType("reticulate"), nil) },
			planning: &mockPlanning{},
			wantErr:  true,
			wantNack: true,
		},
		{
			name: "expired task is dropped without running",
			task: func() *queue.Task {
				task := queue.NewTask(queue.TaskTypeScheduleAll, nil)
				task.NotAfter = &past
				return task
			},
			planning: &mockPlanning{},
			wantNack: true,
		},
		{
			name:      "lock held re-enqueues with delay",
			task:      func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleAll, nil) },
			planning:  failingScheduleAll(lock.ErrLockHeld),
			wantAck:   true,
			wantCalls: 1,
			validate: func(t *testing.T, enqueued []*queue.Task) {
				if len(enqueued) != 1 {
					t.Fatalf("expected one re-enqueued task, got %d", len(enqueued))
				}
				next := enqueued[0]
				if next.RetryCount != 0 {
					t.Errorf("lock contention should not count as a retry, got %d", next.RetryCount)
				}
				if next.NotBefore == nil || time.Until(*next.NotBefore) < DefaultLockRetryDelay-time.Second {
					t.Errorf("expected NotBefore about %s ahead, got %v", DefaultLockRetryDelay, next.NotBefore)
				}
			},
		},
		{
			name:        "lock held without queue is requeued by the broker",
			task:        func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleAll, nil) },
			planning:    failingScheduleAll(lock.ErrLockHeld),
			noQueue:     true,
			wantNack:    true,
			wantRequeue: true,
			wantCalls:   1,
		},
		{
			name:      "deleted job is acked and dropped",
			task:      func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleJob, &jobID) },
			planning:  &mockPlanning{scheduleOneFunc: func(context.Context, uuid.UUID) (*planner.RunResult, error) { return nil, database.ErrJobNotFound }},
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "invalid job input goes to DLQ",
			task:      func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleAll, nil) },
			planning:  failingScheduleAll(&planner.InputValidationError{FieldErrors: map[string]string{"x.title": "is required"}}),
			wantErr:   true,
			wantNack:  true,
			wantCalls: 1,
		},
		{
			name:      "transient failure is retried with backoff",
			task:      func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleAll, nil) },
			planning:  failingScheduleAll(errTransient),
			wantErr:   true,
			wantAck:   true,
			wantCalls: 1,
			validate: func(t *testing.T, enqueued []*queue.Task) {
				if len(enqueued) != 1 || enqueued[0].RetryCount != 1 {
					t.Fatalf("expected one retry with RetryCount 1, got %+v", enqueued)
				}
			},
		},
		{
			name: "retries exhausted goes to DLQ",
			task: func() *queue.Task {
				task := queue.NewTask(queue.TaskTypeScheduleAll, nil)
				task.RetryCount = task.MaxRetries
				return task
			},
			planning:  failingScheduleAll(errTransient),
			wantErr:   true,
			wantNack:  true,
			wantCalls: 1,
		},
		{
			name:        "failed re-enqueue returns the message to the broker",
			task:        func() *queue.Task { return queue.NewTask(queue.TaskTypeScheduleAll, nil) },
			planning:    failingScheduleAll(errTransient),
			queueErr:    errors.New("channel closed"),
			wantErr:     true,
			wantNack:    true,
			wantRequeue: true,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &mockTaskQueue{enqueueErr: tt.queueErr}
			var taskQueue queue.TaskQueue = q
			if tt.noQueue {
				taskQueue = nil
			}
			p := NewProcessor(tt.planning, taskQueue, zaptest.NewLogger(t))
			msg := &mockMessage{task: tt.task()}

			err := p.ProcessTask(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Errorf("ProcessTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", msg.acked, tt.wantAck)
			}
			if msg.nacked != tt.wantNack || msg.requeue != tt.wantRequeue {
				t.Errorf("nacked = %v requeue = %v, want %v %v", msg.nacked, msg.requeue, tt.wantNack, tt.wantRequeue)
			}
			if tt.planning.calls != tt.wantCalls {
				t.Errorf("planning calls = %d, want %d", tt.planning.calls, tt.wantCalls)
			}
			if tt.validate != nil {
				tt.validate(t, q.enqueued)
			}
		})
	}
}

func TestProcessor_WaitsForNotBefore(t *testing.T) {
	t.Parallel()

	planning := &mockPlanning{}
	p := NewProcessor(planning, nil, zaptest.NewLogger(t))
	task := queue.NewTask(queue.TaskTypeScheduleAll, nil).Delay(50 * time.Millisecond)
	msg := &mockMessage{task: task}

	start := time.Now()
	if err := p.ProcessTask(context.Background(), msg); err != nil {
		t.Fatalf("ProcessTask() error = %v", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Error("task ran before its NotBefore time")
	}
	if !msg.acked || planning.calls != 1 {
		t.Errorf("expected the task to run and be acked, acked=%v calls=%d", msg.acked, planning.calls)
	}
}

func TestProcessor_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	planning := &mockPlanning{}
	p := NewProcessor(planning, nil, zaptest.NewLogger(t))
	msg := &mockMessage{task: queue.NewTask(queue.TaskTypeScheduleAll, nil).Delay(time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.ProcessTask(ctx, msg); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !msg.nacked || !msg.requeue || planning.calls != 0 {
		t.Errorf("cancelled task should be requeued without running, got %+v calls=%d", msg, planning.calls)
	}
}

func TestProcessor_RetryDelay(t *testing.T) {
	t.Parallel()

	p := NewProcessor(&mockPlanning{}, nil, nil)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{3, 40 * time.Second},
		{20, maxRetryDelay},
	}
	for _, tt := range tests {
		if got := p.retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
