package planner

import (
	"time"

	"github.com/benvon/frog-planner/internal/models"
)

// booking is one interval committed to a day during a run
type booking struct {
	day   models.Date
	span  Interval
	title string
	frog  bool
}

// runState is the mutable calendar of a single ScheduleJobs call.
// It is created per call and never shared.
type runState struct {
	occupied  map[models.Date][]Interval
	frogDays  map[models.Date]bool
	titleDays map[string]map[models.Date]bool
}

func newRunState() *runState {
	return &runState{
		occupied:  make(map[models.Date][]Interval),
		frogDays:  make(map[models.Date]bool),
		titleDays: make(map[string]map[models.Date]bool),
	}
}

// seed records a job that was placed before this run started
func (r *runState) seed(job *models.Job, loc *time.Location) {
	end, ok := job.EndMoment()
	if !ok {
		return
	}
	r.book(booking{
		day:   *job.Date,
		span:  Interval{Start: job.Date.At(*job.StartTime, loc), End: end.Date.At(end.Clock, loc)},
		title: job.Title,
		frog:  job.IsFrog,
	})
}

func (r *runState) book(b booking) {
	r.occupied[b.day] = append(r.occupied[b.day], b.span)
	if b.frog {
		r.frogDays[b.day] = true
	}
	days, ok := r.titleDays[b.title]
	if !ok {
		days = make(map[models.Date]bool)
		r.titleDays[b.title] = days
	}
	days[b.day] = true
}

// release undoes book for a placement that is not going to be committed
func (r *runState) release(b booking) {
	spans := r.occupied[b.day]
	for i, span := range spans {
		if span.Start.Equal(b.span.Start) && span.End.Equal(b.span.End) {
			r.occupied[b.day] = append(spans[:i:i], spans[i+1:]...)
			break
		}
	}
	if b.frog {
		delete(r.frogDays, b.day)
	}
	if days, ok := r.titleDays[b.title]; ok {
		delete(days, b.day)
	}
}

func (r *runState) intervals(day models.Date) []Interval {
	return r.occupied[day]
}

func (r *runState) hasFrog(day models.Date) bool {
	return r.frogDays[day]
}

func (r *runState) hasTitle(title string, day models.Date) bool {
	return r.titleDays[title][day]
}
