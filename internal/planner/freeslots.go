package planner

import (
	"slices"
	"time"

	"github.com/benvon/frog-planner/internal/models"
)

// Interval is a half-open span [Start, End) on a single day
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Empty reports whether the interval has no positive length
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether the two intervals share any time
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// WorkWindow returns the working hours of day
func (s Settings) WorkWindow(day models.Date) Interval {
	loc := s.location()
	return Interval{Start: day.At(s.WorkDayStart, loc), End: day.At(s.WorkDayEnd, loc)}
}

// BlockedWindow returns the fixed blocked period of day, if one is configured
func (s Settings) BlockedWindow(day models.Date) (Interval, bool) {
	if !s.hasBlockedPeriod() {
		return Interval{}, false
	}
	loc := s.location()
	return Interval{Start: day.At(s.BlockedStart, loc), End: day.At(s.BlockedEnd, loc)}, true
}

// FreeSlots returns the free parts of day's working window, sorted by start,
// after removing the blocked period and every occupied interval. The result
// never contains empty intervals and does not depend on the order of occupied.
func (s Settings) FreeSlots(day models.Date, occupied []Interval) []Interval {
	busy := make([]Interval, 0, len(occupied)+1)
	busy = append(busy, occupied...)
	if blocked, ok := s.BlockedWindow(day); ok {
		busy = append(busy, blocked)
	}
	slices.SortFunc(busy, func(a, b Interval) int {
		return a.Start.Compare(b.Start)
	})

	free := []Interval{s.WorkWindow(day)}
	for _, b := range busy {
		if b.Empty() {
			continue
		}
		free = subtract(free, b)
		if len(free) == 0 {
			break
		}
	}
	return free
}

// subtract removes b from every interval in free, keeping the order
func subtract(free []Interval, b Interval) []Interval {
	out := make([]Interval, 0, len(free)+1)
	for _, f := range free {
		if !f.Overlaps(b) {
			out = append(out, f)
			continue
		}
		if b.Start.After(f.Start) {
			out = append(out, Interval{Start: f.Start, End: b.Start})
		}
		if b.End.Before(f.End) {
			out = append(out, Interval{Start: b.End, End: f.End})
		}
	}
	return out
}
