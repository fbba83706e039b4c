package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// MaxTitleLength matches the title column width
	MaxTitleLength = 255
	// MaxDescriptionLength bounds free-text descriptions
	MaxDescriptionLength = 10000
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	// MinDurationHours is the shortest job that can be entered
	MinDurationHours = decimal.RequireFromString("0.25")
	// MaxDurationHours is the longest single job that can be entered
	MaxDurationHours = decimal.NewFromInt(16)
)

func init() {
	Validate = validator.New()

	// Report JSON field names instead of Go field names
	Validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("level", validateLevel); err != nil {
		panic(fmt.Sprintf("failed to register level validator: %v", err))
	}

	// Decimal durations are validated as floats; 0.25 and 16 are exact in binary
	Validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// validateLevel validates that an int is a valid Level enum value
func validateLevel(fl validator.FieldLevel) bool {
	switch models.Level(fl.Field().Int()) {
	case models.LevelLow, models.LevelMedium, models.LevelHigh:
		return true
	default:
		return false
	}
}

// DurationHoursError explains why a duration is not acceptable, or returns nil
func DurationHoursError(d decimal.Decimal) error {
	if d.LessThan(MinDurationHours) {
		return fmt.Errorf("must be at least %s hours", MinDurationHours)
	}
	if d.GreaterThan(MaxDurationHours) {
		return fmt.Errorf("must be at most %s hours", MaxDurationHours)
	}
	if !d.Equal(d.Round(2)) {
		return errors.New("must have at most two decimal places")
	}
	return nil
}

// jobRules mirrors the validated fields of models.Job
type jobRules struct {
	Title         string          `json:"title" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=10000"`
	Urgency       models.Level    `json:"urgency" validate:"level"`
	Importance    models.Level    `json:"importance" validate:"level"`
	DurationHours decimal.Decimal `json:"duration_hours" validate:"gte=0.25,lte=16"`
}

// ValidateJob checks a job before it is stored or scheduled and returns
// field level messages keyed by JSON field name. An empty map means valid.
func ValidateJob(job *models.Job) map[string]string {
	fieldErrors := make(map[string]string)
	if job == nil {
		fieldErrors["job"] = "is required"
		return fieldErrors
	}

	rules := jobRules{
		Title:         strings.TrimSpace(job.Title),
		Description:   job.Description,
		Urgency:       job.Urgency,
		Importance:    job.Importance,
		DurationHours: job.DurationHours,
	}
	if err := Validate.Struct(rules); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			fieldErrors["job"] = err.Error()
			return fieldErrors
		}
		for _, fe := range validationErrors {
			fieldErrors[fe.Field()] = describe(fe, job)
		}
	}
	if _, bad := fieldErrors["duration_hours"]; !bad {
		if err := DurationHoursError(job.DurationHours); err != nil {
			fieldErrors["duration_hours"] = err.Error()
		}
	}

	validatePlacement(job, fieldErrors)
	return fieldErrors
}

// validatePlacement enforces that a manual placement is complete and fits in one day
func validatePlacement(job *models.Job, fieldErrors map[string]string) {
	switch {
	case job.Date == nil && job.StartTime == nil:
		return
	case job.Date == nil:
		fieldErrors["date"] = "is required when a start time is given"
		return
	case job.StartTime == nil:
		fieldErrors["start_time"] = "is required when a date is given"
		return
	}
	if !job.StartTime.Valid() {
		fieldErrors["start_time"] = "must be a time of day"
		return
	}
	if _, bad := fieldErrors["duration_hours"]; bad {
		return
	}
	if end := job.StartTime.Add(job.Duration()); !end.Valid() {
		fieldErrors["start_time"] = "job must end on the same day it starts"
	}
}

func describe(fe validator.FieldError, job *models.Job) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "level":
		return "must be 1 (low), 2 (medium) or 3 (high)"
	case "gte", "lte":
		if err := DurationHoursError(job.DurationHours); err != nil {
			return err.Error()
		}
		return "is invalid"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
