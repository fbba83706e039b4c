package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/queue"
	"github.com/benvon/frog-planner/internal/services/planning"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxWeekOffset bounds how far the week view can look ahead or back
	MaxWeekOffset = 520
	// asyncTaskTTL is how long a queued scheduling task stays valid
	asyncTaskTTL = time.Hour
)

// JobService is the planning behaviour exposed over HTTP
type JobService interface {
	List(ctx context.Context) ([]planning.JobView, error)
	Get(ctx context.Context, id uuid.UUID) (planning.JobView, error)
	Create(ctx context.Context, input planning.JobInput) (*models.Job, error)
	Update(ctx context.Context, id uuid.UUID, patch planning.JobPatch) (*models.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Reset(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ResetAll(ctx context.Context, onlyOpen bool) (int64, error)
	ScheduleAll(ctx context.Context) (*planner.RunResult, error)
	ScheduleOne(ctx context.Context, id uuid.UUID) (*planner.RunResult, error)
	Today(ctx context.Context) (planning.DayPlan, error)
	Week(ctx context.Context, offset int) (planning.WeekPlan, error)
}

var _ JobService = (*planning.Service)(nil)

// JobHandler serves jobs, scheduling runs and plan views
type JobHandler struct {
	service JobService
	tasks   queue.TaskQueue
	logger  *zap.Logger
}

// NewJobHandler creates a job handler. tasks may be nil, in which case
// asynchronous scheduling requests are refused.
func NewJobHandler(service JobService, tasks queue.TaskQueue, logger *zap.Logger) *JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobHandler{service: service, tasks: tasks, logger: logger}
}

// RegisterRoutes registers job and plan routes on the API router (e.g. /api/v1)
func (h *JobHandler) RegisterRoutes(r *mux.Router) {
	jobs := r.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("", h.ListJobs).Methods(http.MethodGet)
	jobs.HandleFunc("", h.CreateJob).Methods(http.MethodPost)
	jobs.HandleFunc("/schedule", h.ScheduleAll).Methods(http.MethodPost)
	jobs.HandleFunc("/reset", h.ResetAll).Methods(http.MethodPost)
	jobs.HandleFunc("/{id}", h.GetJob).Methods(http.MethodGet)
	jobs.HandleFunc("/{id}", h.UpdateJob).Methods(http.MethodPatch)
	jobs.HandleFunc("/{id}", h.DeleteJob).Methods(http.MethodDelete)
	jobs.HandleFunc("/{id}/schedule", h.ScheduleJob).Methods(http.MethodPost)
	jobs.HandleFunc("/{id}/reset", h.ResetJob).Methods(http.MethodPost)
	jobs.HandleFunc("/{id}/complete", h.CompleteJob).Methods(http.MethodPost)

	plan := r.PathPrefix("/plan").Subrouter()
	plan.HandleFunc("/today", h.Today).Methods(http.MethodGet)
	plan.HandleFunc("/week", h.Week).Methods(http.MethodGet)
}

// ListJobs lists every job ordered by date and start time, unscheduled last
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "list jobs", err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

// CreateJob creates a job, placed when both date and start_time are given
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var input planning.JobInput
	if !decodeJSON(w, r, &input) {
		return
	}
	job, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondServiceError(w, h.logger, "create job", err)
		return
	}
	respondJSON(w, http.StatusCreated, job)
}

// GetJob returns one job
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "get job", err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// UpdateJob applies a partial update
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch planning.JobPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	job, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, h.logger, "update job", err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// DeleteJob removes a job
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, "delete job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteJob marks a job done
func (h *JobHandler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	job, err := h.service.Complete(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "complete job", err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// ResetJob clears the placement of one job
func (h *JobHandler) ResetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	job, err := h.service.Reset(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "reset job", err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// ResetAll clears every placement; ?only_open=true keeps completed jobs placed
func (h *JobHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	onlyOpen, err := queryBool(r, "only_open")
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	n, err := h.service.ResetAll(r.Context(), onlyOpen)
	if err != nil {
		respondServiceError(w, h.logger, "reset jobs", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reset": n})
}

// ScheduleAll runs the scheduler over every unscheduled job, or queues the
// run when ?async=true
func (h *JobHandler) ScheduleAll(w http.ResponseWriter, r *http.Request) {
	async, err := queryBool(r, "async")
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if async {
		h.enqueue(w, r, queue.NewTask(queue.TaskTypeScheduleAll, nil))
		return
	}
	result, err := h.service.ScheduleAll(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "schedule jobs", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ScheduleJob runs the scheduler for one job, or queues it when ?async=true
func (h *JobHandler) ScheduleJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	async, err := queryBool(r, "async")
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if async {
		h.enqueue(w, r, queue.NewTask(queue.TaskTypeScheduleJob, &id))
		return
	}
	result, err := h.service.ScheduleOne(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "schedule job", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *JobHandler) enqueue(w http.ResponseWriter, r *http.Request, task *queue.Task) {
	if h.tasks == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Asynchronous scheduling is not configured")
		return
	}
	notAfter := task.CreatedAt.Add(asyncTaskTTL)
	task.NotAfter = &notAfter
	if err := h.tasks.Enqueue(r.Context(), task); err != nil {
		h.logger.Error("failed_to_enqueue_task",
			zap.String("task_type", string(task.Type)),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to queue scheduling run")
		return
	}
	h.logger.Info("task_enqueued",
		zap.String("task_id", task.ID.String()),
		zap.String("task_type", string(task.Type)),
	)
	respondJSON(w, http.StatusAccepted, map[string]any{"task_id": task.ID, "type": task.Type})
}

// Today returns the current day's plan
func (h *JobHandler) Today(w http.ResponseWriter, r *http.Request) {
	day, err := h.service.Today(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "load today", err)
		return
	}
	respondJSON(w, http.StatusOK, day)
}

// Week returns the Monday to Sunday plan at ?offset=N weeks from now
func (h *JobHandler) Week(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < -MaxWeekOffset || parsed > MaxWeekOffset {
			respondJSONError(w, http.StatusBadRequest, "Bad Request",
				fmt.Sprintf("offset must be an integer between -%d and %d", MaxWeekOffset, MaxWeekOffset))
			return
		}
		offset = parsed
	}
	week, err := h.service.Week(r.Context(), offset)
	if err != nil {
		respondServiceError(w, h.logger, "load week", err)
		return
	}
	respondJSON(w, http.StatusOK, week)
}
