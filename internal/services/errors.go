package services

import "fmt"

// ValidationError reports a malformed request. Nothing is mutated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError reports an operation attempted against a workflow or step
// in the wrong lifecycle state. Nothing is mutated.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

// NewInvalidStateError creates an InvalidStateError with a formatted message.
func NewInvalidStateError(format string, args ...any) *InvalidStateError {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

// ExecutionError reports a collaborator call failure (timeout, authentication
// failure, malformed response). It terminates the workflow as failed.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string { return e.Message }

func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps a collaborator failure.
func NewExecutionError(err error) *ExecutionError {
	return &ExecutionError{Message: err.Error(), Err: err}
}

// ConcurrencyError reports that another caller is already advancing the
// workflow. The caller should retry after the in-flight attempt finishes.
type ConcurrencyError struct {
	WorkflowID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("workflow %s execution already in progress", e.WorkflowID)
}
