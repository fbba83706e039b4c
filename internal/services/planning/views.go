package planning

import (
	"context"
	"fmt"

	"github.com/benvon/frog-planner/internal/models"
)

// DayPlan is the schedule of one calendar day
type DayPlan struct {
	Date    models.Date `json:"date"`
	Weekday string      `json:"weekday"`
	Jobs    []JobView   `json:"jobs"`
}

// WeekPlan is the Monday to Sunday schedule at an offset from the current week
type WeekPlan struct {
	Offset int         `json:"offset"`
	Start  models.Date `json:"start"`
	End    models.Date `json:"end"`
	Days   []DayPlan   `json:"days"`
}

// List returns every job ordered by date and start time, unscheduled last
func (s *Service) List(ctx context.Context) ([]JobView, error) {
	jobs, err := s.store.Query(ctx, models.JobFilter{}, models.OrderBySchedule)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return views(jobs), nil
}

// Today returns the jobs placed on the current day ordered by start time
func (s *Service) Today(ctx context.Context) (DayPlan, error) {
	today := s.today()
	jobs, err := s.store.Query(ctx, models.JobFilter{DateFrom: &today, DateTo: &today}, models.OrderBySchedule)
	if err != nil {
		return DayPlan{}, fmt.Errorf("failed to load today's jobs: %w", err)
	}
	return DayPlan{Date: today, Weekday: today.Weekday().String(), Jobs: views(jobs)}, nil
}

// Week returns the week offset weeks away from the current one; negative
// offsets look back
func (s *Service) Week(ctx context.Context, offset int) (WeekPlan, error) {
	start := s.today().StartOfWeek().AddDays(7 * offset)
	end := start.AddDays(6)
	jobs, err := s.store.Query(ctx, models.JobFilter{DateFrom: &start, DateTo: &end}, models.OrderBySchedule)
	if err != nil {
		return WeekPlan{}, fmt.Errorf("failed to load week: %w", err)
	}

	plan := WeekPlan{Offset: offset, Start: start, End: end, Days: make([]DayPlan, 7)}
	for i := range plan.Days {
		day := start.AddDays(i)
		plan.Days[i] = DayPlan{Date: day, Weekday: day.Weekday().String(), Jobs: []JobView{}}
	}
	for _, job := range jobs {
		if job.Date == nil {
			continue
		}
		i := dayIndex(start, *job.Date)
		if i < 0 || i > 6 {
			continue
		}
		plan.Days[i].Jobs = append(plan.Days[i].Jobs, viewOf(job))
	}
	return plan, nil
}

func dayIndex(start, day models.Date) int {
	for i := 0; i < 7; i++ {
		if start.AddDays(i) == day {
			return i
		}
	}
	return -1
}

func views(jobs []*models.Job) []JobView {
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, viewOf(job))
	}
	return out
}
