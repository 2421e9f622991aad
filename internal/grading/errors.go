package grading

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMisconfigured marks questions that cannot be graded as stored. It is a
// configuration problem, not a learner mistake.
var ErrMisconfigured = errors.New("question misconfigured")

var (
	ErrKeyMissing  = fmt.Errorf("%w: answer key missing for question type", ErrMisconfigured)
	ErrUnknownType = fmt.Errorf("%w: unknown question type", ErrMisconfigured)
)

// ValidationError describes a malformed key or submission, field by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// FieldError builds a single-field validation error.
func FieldError(field, format string, args ...any) error {
	return fieldError(field, fmt.Sprintf(format, args...))
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
