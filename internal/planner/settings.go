package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/frog-planner/internal/models"
)

const (
	// DefaultHorizonDays is how far ahead the scheduler looks when none is configured
	DefaultHorizonDays = 30
)

// Settings are the calendar rules a scheduling run works within
type Settings struct {
	WorkDayStart models.ClockTime
	WorkDayEnd   models.ClockTime
	BlockedStart models.ClockTime
	BlockedEnd   models.ClockTime
	HorizonDays  int
	// Location decides what "today" and "now" mean
	Location *time.Location
	// DayAvailable reports whether jobs may be placed on a day; nil means weekdays only
	DayAvailable func(models.Date) bool
}

// DefaultSettings returns a 07:00-21:00 working day blocked 16:00-19:00,
// a 30 day horizon and no weekend placement
func DefaultSettings() Settings {
	return Settings{
		WorkDayStart: models.Clock(7, 0),
		WorkDayEnd:   models.Clock(21, 0),
		BlockedStart: models.Clock(16, 0),
		BlockedEnd:   models.Clock(19, 0),
		HorizonDays:  DefaultHorizonDays,
		Location:     time.Local,
		DayAvailable: WeekdaysOnly,
	}
}

// WeekdaysOnly is the default day-availability policy
func WeekdaysOnly(day models.Date) bool {
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// ExcludeWeekdays builds a day-availability policy that rejects the given weekdays
func ExcludeWeekdays(days ...time.Weekday) func(models.Date) bool {
	blocked := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		blocked[d] = true
	}
	return func(day models.Date) bool {
		return !blocked[day.Weekday()]
	}
}

// Validate checks that the windows are well formed
func (s Settings) Validate() error {
	if !s.WorkDayStart.Valid() || !s.WorkDayEnd.Valid() {
		return errors.New("work day bounds must be times of day")
	}
	if s.WorkDayStart >= s.WorkDayEnd {
		return fmt.Errorf("work day start %s must be before end %s", s.WorkDayStart, s.WorkDayEnd)
	}
	if s.hasBlockedPeriod() {
		if s.BlockedStart < s.WorkDayStart || s.BlockedEnd > s.WorkDayEnd {
			return fmt.Errorf("blocked period %s-%s must lie within the work day %s-%s",
				s.BlockedStart, s.BlockedEnd, s.WorkDayStart, s.WorkDayEnd)
		}
	} else if s.BlockedStart > s.BlockedEnd {
		return fmt.Errorf("blocked period start %s is after its end %s", s.BlockedStart, s.BlockedEnd)
	}
	if s.HorizonDays <= 0 {
		return fmt.Errorf("horizon must be at least one day, got %d", s.HorizonDays)
	}
	return nil
}

func (s Settings) hasBlockedPeriod() bool {
	return s.BlockedStart < s.BlockedEnd
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func (s Settings) available(day models.Date) bool {
	if s.DayAvailable == nil {
		return WeekdaysOnly(day)
	}
	return s.DayAvailable(day)
}

// Today returns the calendar day of t in the planner's time zone
func (s Settings) Today(t time.Time) models.Date {
	return models.DateOf(t.In(s.location()))
}

// MomentAt returns the day and time of day of t in the planner's time zone
func (s Settings) MomentAt(t time.Time) models.Moment {
	return models.MomentOf(t.In(s.location()))
}
