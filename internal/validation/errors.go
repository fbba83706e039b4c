package validation

import (
	"sort"
	"strings"

	"github.com/benvon/frog-planner/internal/models"
)

// Error carries field level validation messages keyed by JSON field name
type Error struct {
	FieldErrors map[string]string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil || len(e.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field+" "+e.FieldErrors[field])
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, "; ")
}

// CheckJob returns a *Error when the job is not valid
func CheckJob(job *models.Job) error {
	if fieldErrors := ValidateJob(job); len(fieldErrors) > 0 {
		return &Error{FieldErrors: fieldErrors}
	}
	return nil
}
