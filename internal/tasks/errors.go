package tasks

import (
	"errors"
	"fmt"
)

// ErrNotFound covers both missing tasks and tasks owned by another
// user; callers can not tell the two apart.
var ErrNotFound = errors.New("tasks: task not found")

// ValidationError reports bad input shape or length. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports an operation incompatible with the task's
// current state, e.g. updating a soft-deleted task.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
