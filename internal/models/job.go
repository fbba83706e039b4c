package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Level is an ordinal urgency or importance rating
type Level int

const (
	LevelLow    Level = 1
	LevelMedium Level = 2
	LevelHigh   Level = 3
)

// String returns the display name of the level
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Tier is the A/B/C priority class derived from urgency and importance
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// JobState describes where a job is in its lifecycle
type JobState string

const (
	JobStateUnscheduled JobState = "unscheduled"
	JobStateScheduled   JobState = "scheduled"
	JobStateCompleted   JobState = "completed"
)

// Job is a unit of work that can be placed on the calendar
type Job struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Urgency       Level           `json:"urgency"`
	Importance    Level           `json:"importance"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	IsFrog        bool            `json:"is_frog"`
	CanBeDivided  bool            `json:"can_be_divided"`
	Date          *Date           `json:"date,omitempty"`
	StartTime     *ClockTime      `json:"start_time,omitempty"`
	EndTime       *ClockTime      `json:"end_time,omitempty"`
	DueDate       *Date           `json:"due_date,omitempty"`
	Completed     bool            `json:"completed"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsPlaced reports whether the job has both a date and a start time
func (j *Job) IsPlaced() bool {
	return j.Date != nil && j.StartTime != nil
}

// State returns the lifecycle state of the job
func (j *Job) State() JobState {
	switch {
	case j.Completed:
		return JobStateCompleted
	case j.IsPlaced():
		return JobStateScheduled
	default:
		return JobStateUnscheduled
	}
}

// Duration converts DurationHours into a time.Duration without float rounding
func (j *Job) Duration() time.Duration {
	return HoursToDuration(j.DurationHours)
}

// Place sets date, start and end together; end is derived from the duration
func (j *Job) Place(day Date, start ClockTime) {
	end := start.Add(j.Duration())
	j.Date = &day
	j.StartTime = &start
	j.EndTime = &end
}

// ClearSchedule returns the job to the unscheduled state
func (j *Job) ClearSchedule() {
	j.Date = nil
	j.StartTime = nil
	j.EndTime = nil
}

// EndMoment returns the day and time at which a placed job finishes
func (j *Job) EndMoment() (Moment, bool) {
	if !j.IsPlaced() {
		return Moment{}, false
	}
	end := j.StartTime.Add(j.Duration())
	if j.EndTime != nil {
		end = *j.EndTime
	}
	return Moment{Date: *j.Date, Clock: end}, true
}

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// HoursToDuration converts a decimal number of hours to a time.Duration
func HoursToDuration(hours decimal.Decimal) time.Duration {
	return time.Duration(hours.Mul(nanosPerHour).IntPart())
}
