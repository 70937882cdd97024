package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrAuthRequired indicates an anonymous request against a resource
	// that does not permit anonymous access.
	ErrAuthRequired = errors.New("authentication required")
	// ErrPermissionDenied indicates an authenticated actor lacking the role
	// the operation demands.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnknownComponent indicates a component segment the parent table
	// does not declare.
	ErrUnknownComponent = errors.New("unknown component")
)

// ValidationError reports per-field validation failures of one row.
// The dispatcher renders it as a 422 with the field map in the body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newValidationError builds a single-field validation error.
func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
