// Package domain defines core types, interfaces, and errors for the security agent.
package domain

import "fmt"

// NotFoundError indicates a resource (for example a table) was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamError indicates the model service or the store could not be reached
// or answered with an error.
type UpstreamError struct {
	Service string // "llm" or "store"
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedOutputError indicates a response that did not parse into the
// shape a stage expects.
type MalformedOutputError struct {
	Stage  string
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: malformed model output: %s", e.Stage, e.Reason)
}

// ExecutionError indicates the store rejected a synthesized query.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrMalformed creates a MalformedOutputError for the given stage.
func ErrMalformed(stage, format string, args ...interface{}) *MalformedOutputError {
	return &MalformedOutputError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// PipelineError carries the envelope of a pipeline run that failed without
// a fallback, for callers that need an error value.
type PipelineError struct {
	Envelope ErrorEnvelope
}

func (e *PipelineError) Error() string { return e.Envelope.Error }
