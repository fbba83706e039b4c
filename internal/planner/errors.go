package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// InputValidationError lists jobs that cannot be scheduled as entered.
// It is returned before any storage write happens.
type InputValidationError struct {
	// FieldErrors is keyed by "<job id>.<field>"
	FieldErrors map[string]string
}

// Error implements the error interface
func (e *InputValidationError) Error() string {
	if e == nil || len(e.FieldErrors) == 0 {
		return "invalid job input"
	}
	keys := make([]string, 0, len(e.FieldErrors))
	for k := range e.FieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.FieldErrors[k]))
	}
	return "invalid job input: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded
func (e *InputValidationError) HasErrors() bool {
	return e != nil && len(e.FieldErrors) > 0
}

func (e *InputValidationError) add(jobID uuid.UUID, field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string]string)
	}
	e.FieldErrors[jobID.String()+"."+field] = message
}
