package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"gopkg.in/yaml.v3"
)

// Planner holds the calendar rules handed to the scheduler
type Planner struct {
	WorkDayStart        models.ClockTime `yaml:"workday_start" json:"workday_start"`
	WorkDayEnd          models.ClockTime `yaml:"workday_end" json:"workday_end"`
	BlockedStart        models.ClockTime `yaml:"blocked_start" json:"blocked_start"`
	BlockedEnd          models.ClockTime `yaml:"blocked_end" json:"blocked_end"`
	HorizonDays         int              `yaml:"horizon_days" json:"horizon_days"`
	UnavailableWeekdays []string         `yaml:"unavailable_weekdays" json:"unavailable_weekdays"`
	// TimeZone is an IANA name; empty or "Local" uses the host zone
	TimeZone string `yaml:"time_zone" json:"time_zone"`
}

// DefaultPlanner returns the stock working day: 07:00-21:00, blocked 16:00-19:00,
// thirty days ahead, no weekends
func DefaultPlanner() Planner {
	return Planner{
		WorkDayStart:        models.Clock(7, 0),
		WorkDayEnd:          models.Clock(21, 0),
		BlockedStart:        models.Clock(16, 0),
		BlockedEnd:          models.Clock(19, 0),
		HorizonDays:         planner.DefaultHorizonDays,
		UnavailableWeekdays: []string{"saturday", "sunday"},
		TimeZone:            "Local",
	}
}

// LoadFile overlays the settings present in a YAML file
func (p *Planner) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read planner config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to parse planner config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays PLANNER_* environment variables
func (p *Planner) applyEnv() error {
	clocks := []struct {
		key string
		dst *models.ClockTime
	}{
		{"PLANNER_WORKDAY_START", &p.WorkDayStart},
		{"PLANNER_WORKDAY_END", &p.WorkDayEnd},
		{"PLANNER_BLOCKED_START", &p.BlockedStart},
		{"PLANNER_BLOCKED_END", &p.BlockedEnd},
	}
	for _, c := range clocks {
		value := os.Getenv(c.key)
		if value == "" {
			continue
		}
		parsed, err := models.ParseClock(value)
		if err != nil {
			return fmt.Errorf("%s: %w", c.key, err)
		}
		*c.dst = parsed
	}

	p.HorizonDays = getEnvInt("PLANNER_HORIZON_DAYS", p.HorizonDays)
	if value := os.Getenv("PLANNER_UNAVAILABLE_WEEKDAYS"); value != "" {
		p.UnavailableWeekdays = splitList(value)
	}
	p.TimeZone = getEnv("PLANNER_TIMEZONE", p.TimeZone)
	return nil
}

// Validate rejects inverted windows and a blocked period outside the work day
func (p Planner) Validate() error {
	days, err := parseWeekdays(p.UnavailableWeekdays)
	if err != nil {
		return err
	}
	if len(days) == 7 {
		return errors.New("at least one weekday must be available")
	}
	if _, err := p.location(); err != nil {
		return err
	}
	return p.settings(time.UTC, nil).Validate()
}

// ToSettings converts the configuration into scheduler settings
func (p Planner) ToSettings() (planner.Settings, error) {
	if err := p.Validate(); err != nil {
		return planner.Settings{}, err
	}
	loc, err := p.location()
	if err != nil {
		return planner.Settings{}, err
	}
	days, err := parseWeekdays(p.UnavailableWeekdays)
	if err != nil {
		return planner.Settings{}, err
	}
	return p.settings(loc, planner.ExcludeWeekdays(days...)), nil
}

func (p Planner) settings(loc *time.Location, available func(models.Date) bool) planner.Settings {
	return planner.Settings{
		WorkDayStart: p.WorkDayStart,
		WorkDayEnd:   p.WorkDayEnd,
		BlockedStart: p.BlockedStart,
		BlockedEnd:   p.BlockedEnd,
		HorizonDays:  p.HorizonDays,
		Location:     loc,
		DayAvailable: available,
	}
}

func (p Planner) location() (*time.Location, error) {
	if p.TimeZone == "" || strings.EqualFold(p.TimeZone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", p.TimeZone, err)
	}
	return loc, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, len(names))
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	return days, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
