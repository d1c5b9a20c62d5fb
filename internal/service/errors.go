package service

import (
	"errors"
	"fmt"
)

// Sentinels callers match with errors.Is. The typed errors below carry detail.
var (
	ErrNotFound           = errors.New("not found")
	ErrPrecondition       = errors.New("precondition failed")
	ErrUpstreamGeneration = errors.New("content generation failed")
	ErrValidationFailed   = errors.New("validation failed")
)

// NotFoundError reports a dead end: nothing to select or no such record.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError reports an assignment that cannot be written because the
// catalog does not provide what it needs.
type PreconditionError struct {
	ExerciseID string
	Reason     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot assign exercise %s: %s", e.ExerciseID, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// UpstreamGenerationError wraps a failure of the content generator.
// Nothing is persisted when it is returned.
type UpstreamGenerationError struct {
	Op  string
	Err error
}

func (e *UpstreamGenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamGenerationError) Is(target error) bool { return target == ErrUpstreamGeneration }

func (e *UpstreamGenerationError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}
