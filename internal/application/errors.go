package application

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/example/room-scheduler/internal/persistence"
)

// Sentinels the transports translate into status codes.
var (
	ErrUnauthorized  = errors.New("application: unauthorized")
	ErrNotFound      = errors.New("application: not found")
	ErrInvalidAction = errors.New("application: invalid booking action")
)

// ValidationError maps each rejected input field to a message. It is only
// returned once at least one field was rejected.
type ValidationError struct {
	FieldErrors map[string]string
}

func invalidField(field, message string) *ValidationError {
	return (&ValidationError{}).Add(field, message)
}

func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("validation failed:")
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(" " + field + " " + v.FieldErrors[field])
	}
	return b.String()
}

// Add records message for field unless the field was already rejected.
func (v *ValidationError) Add(field, message string) *ValidationError {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, seen := v.FieldErrors[field]; !seen {
		v.FieldErrors[field] = message
	}
	return v
}

// Merge folds the fields of err into v when err is a validation error and
// reports whether it was one.
func (v *ValidationError) Merge(err error) bool {
	var other *ValidationError
	if !errors.As(err, &other) || other == nil {
		return false
	}
	for field, message := range other.FieldErrors {
		v.Add(field, message)
	}
	return true
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Err returns v, or nil when no field was rejected.
func (v *ValidationError) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

// mapStoreError folds storage sentinels into their service counterparts.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return invalidField("object", "conflicts with a stored object")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return invalidField("object", "violates a storage constraint")
	}
	return err
}

// ErrorKind labels err for the error_kind log attribute.
func ErrorKind(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case isNotFoundError(err):
		return "not_found"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &vErr):
		return "validation"
	}
	return "unexpected"
}
