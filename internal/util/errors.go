package util

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for lomsync
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrResourceNotFound indicates a resource does not exist in the repository
	ErrResourceNotFound = errors.New("resource not found")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates an operation was cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrShutdown indicates the pool no longer accepts tasks
	ErrShutdown = errors.New("system shutting down")

	// ErrShutdownForced indicates tasks were still running when the grace period elapsed
	ErrShutdownForced = errors.New("shutdown forced after grace period")

	// ErrQueueFull indicates the task queue is saturated and the task was rejected
	ErrQueueFull = errors.New("task queue full")

	// ErrLockTimeout indicates a bounded-wait lock was not acquired in time
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrTaskPanic indicates a task panicked while executing
	ErrTaskPanic = errors.New("task panicked")

	// ErrInvalidItem indicates an import item failed basic validation
	ErrInvalidItem = errors.New("invalid item")
)

// TaskError attributes a task failure to the item it was working on
type TaskError struct {
	Label string
	Err   error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q: %v", e.Label, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *TaskError) Unwrap() error {
	return e.Err
}

// WrapTaskError wraps an error with the label of the task that produced it
func WrapTaskError(label string, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{
		Label: label,
		Err:   err,
	}
}

// RepositoryError is a collaborator-level failure attributed to an operation and key
type RepositoryError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface
func (e *RepositoryError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("repository %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the wrapped error
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// WrapRepositoryError wraps a repository failure with the operation and key in progress
func WrapRepositoryError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var existing *RepositoryError
	if errors.As(err, &existing) {
		return err
	}
	return &RepositoryError{Op: op, Key: key, Err: err}
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 {
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("validation failed for field %q (value: %v): %s", v.Field, v.Value, v.Message)
	}
	return fmt.Sprintf("validation failed for field %q: %s", v.Field, v.Message)
}

// Unwrap ties every validation failure to ErrInvalidConfig
func (v *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// IsLockTimeout checks if an error is a bounded-wait lock timeout
func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case IsTimeout(err):
		return "Operation timed out. Please try again or increase the timeout value with --timeout flag."
	case IsCancelled(err):
		return "Operation was cancelled."
	case IsNotFound(err):
		return "Resource not found. Please check the resource identifier."
	case IsLockTimeout(err):
		return "Resource is busy. Please try again later."
	case errors.Is(err, ErrShutdown):
		return "The worker pool is shutting down and no longer accepts work."
	case errors.Is(err, ErrInvalidConfig):
		return "Invalid configuration. Please check your config file and command-line flags."
	case errors.Is(err, ErrInvalidItem):
		return "Invalid import item. Every item needs at least a title."
	default:
		return err.Error()
	}
}

// CombineErrors combines multiple errors into a single error
// Returns nil if all errors are nil
func CombineErrors(errs ...error) error {
	m := &MultiError{}
	for _, err := range errs {
		m.Add(err)
	}
	return m.ErrorOrNil()
}
