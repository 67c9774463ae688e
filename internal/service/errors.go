package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/noah-isme/actionlog-api/internal/lock"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

var (
	// ErrActionLogNotFound indicates the action log does not exist or is not visible to the caller.
	ErrActionLogNotFound = errors.New("action log not found")
	// ErrUserNotFound indicates one of the referenced users does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrCommentNotFound indicates the comment does not exist on the action log.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrNotificationNotFound indicates the notification does not exist for the caller.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrPermissionDenied indicates the caller may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotReassignable indicates the log is assigned and outside its reassignment window.
	ErrNotReassignable = errors.New("action log cannot be reassigned until its due date")
	// ErrConflict indicates a concurrent writer changed the log first.
	ErrConflict = errors.New("action log was modified concurrently, reload and retry")
	// ErrUnavailable indicates a storage or collaborator failure.
	ErrUnavailable = errors.New("service temporarily unavailable")
)

// ValidationError reports every invalid field at once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, e.Fields[key]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// validationErrors collects field violations before they are returned together.
type validationErrors map[string]string

func (v validationErrors) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

func (v validationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(v)}
}

// fold merges validator output into the collected violations.
func (v validationErrors) fold(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		v.add(jsonFieldName(fe), describeFieldError(fe))
	}
	return nil
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	return name
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

// PermissionError explains why a command was refused.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	if e.Reason == "" {
		return ErrPermissionDenied.Error()
	}
	return e.Reason
}

// Is lets errors.Is(err, ErrPermissionDenied) match.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

func denied(reason string) error {
	return &PermissionError{Reason: reason}
}

// storageError maps repository failures onto the service taxonomy.
func storageError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, repository.ErrStaleVersion):
		return ErrConflict
	case errors.Is(err, lock.ErrNotAcquired):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
