// Package apperror defines the error kinds the catch log surfaces to callers.
//
// Every error the service returns wraps one of the sentinels below, so callers
// (the HTTP layer, the CLI) branch with errors.Is and never inspect strings.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrPersistence = errors.New("persistence error")
)

// FieldError names one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error        // actual error
	Message string       // Human-readable error message
	Field   string       // Optional: first field causing the error
	Fields  []FieldError // Optional: every field at fault
	Cause   error        // Optional: underlying storage error, never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// ValidationFields builds a single validation error out of several field
// failures. The message joins them in the order given.
func ValidationFields(fields []FieldError) *AppError {
	if len(fields) == 0 {
		return &AppError{Err: ErrValidation, Message: "invalid input"}
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Field:   fields[0].Field,
		Fields:  fields,
	}
}

// Persistence reports a storage failure. op describes what was attempted
// ("creating catch"); the cause stays reachable through errors.Is/As.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: fmt.Sprintf("%s: storage unavailable", op),
		Cause:   cause,
	}
}
