package service

import (
	"context"
	"errors"
	"fmt"

	"shortform-pipeline/provider"
)

type ErrorClass string

const (
	ClassValidation  ErrorClass = "ValidationError"
	ClassTransient   ErrorClass = "TransientServiceError"
	ClassConsistency ErrorClass = "ConsistencyError"
	ClassRender      ErrorClass = "RenderError"
	ClassResource    ErrorClass = "ResourceExhaustionError"
	ClassInternal    ErrorClass = "InternalError"
)

// PipelineError carries the user-visible error class alongside the wrapped
// cause. Status responses expose the class and message, never the cause
// chain.
type PipelineError struct {
	Class ErrorClass
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s at %s: %v", e.Class, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...interface{}) error {
	return &PipelineError{Class: ClassValidation, Err: fmt.Errorf(format, args...)}
}

func NewConsistencyError(format string, args ...interface{}) error {
	return &PipelineError{Class: ClassConsistency, Err: fmt.Errorf(format, args...)}
}

func NewRenderError(err error) error {
	return &PipelineError{Class: ClassRender, Err: err}
}

// Classify maps an arbitrary error onto the pipeline taxonomy. Timeouts and
// provider unavailability are transient.
func Classify(err error) ErrorClass {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Class
	}
	if errors.Is(err, provider.ErrServiceUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassInternal
}

// Retryable reports whether the retry controller may consume a retry on err.
// Only the allow-listed classes are retried; everything else propagates
// immediately.
func Retryable(err error) bool {
	switch Classify(err) {
	case ClassTransient, ClassRender, ClassResource:
		return true
	}
	return false
}
