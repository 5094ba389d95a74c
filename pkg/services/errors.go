// Package services provides the authoring and admin service layer over the
// persistence repositories, with standardized error types.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. Validation errors map to 400 responses, conflict
// errors to 409.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrFlowNameRequired = errors.New("flow name is required")
	ErrNodesRequired    = errors.New("flow must have at least one node")
	ErrFlowNil          = errors.New("flow cannot be nil")
	ErrInvalidStatus    = errors.New("invalid flow status")
	ErrInvalidGraph     = errors.New("invalid flow graph")
	ErrInvalidConfig    = errors.New("invalid node config")

	ErrCannotModifyActive   = errors.New("cannot modify an active flow")
	ErrExecutionNotTerminal = errors.New("execution already reached a terminal state")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyActive) ||
		errors.Is(err, ErrExecutionNotTerminal)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
