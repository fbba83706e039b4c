package models

import "github.com/google/uuid"

// JobFilter narrows job queries. Zero-valued fields do not constrain the result.
type JobFilter struct {
	IDs         []uuid.UUID
	ExcludeIDs  []uuid.UUID
	Unscheduled bool // start time is null
	Placed      bool // date and start time are both set
	DateFrom    *Date
	DateTo      *Date
	Completed   *bool
	// EndedBy matches placed jobs whose end is at or before the given moment
	EndedBy *Moment
}

// JobOrder selects the ordering of query results
type JobOrder string

const (
	// OrderByCreated orders by creation time, oldest first
	OrderByCreated JobOrder = "created"
	// OrderBySchedule orders by date then start time, unscheduled jobs last
	OrderBySchedule JobOrder = "schedule"
)

// JobUpdate is a set of field assignments applied by a bulk update
type JobUpdate struct {
	ClearSchedule bool
	Completed     *bool
}

// IsEmpty reports whether the update assigns nothing
func (u JobUpdate) IsEmpty() bool {
	return !u.ClearSchedule && u.Completed == nil
}
