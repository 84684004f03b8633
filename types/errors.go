package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies engine errors. Transient codes mirror the errno
// names the persistence layer reports for recoverable faults.
type ErrorCode string

const (
	// CodeInvalidTransition marks a Task or SessionState contract violation.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// CodeNotFound marks an operation that referenced an absent index entry.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeCircuitOpen marks a call rejected by an open circuit breaker.
	CodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// CodeSerialization marks malformed persisted record content.
	CodeSerialization ErrorCode = "SERIALIZATION"

	// CodeResourceBusy: the resource is temporarily busy (EBUSY).
	CodeResourceBusy ErrorCode = "EBUSY"
	// CodeNotAvailable: the resource is not yet available (EAGAIN).
	CodeNotAvailable ErrorCode = "EAGAIN"
	// CodeTooManyFiles: the process file table is momentarily full (EMFILE).
	CodeTooManyFiles ErrorCode = "EMFILE"
	// CodeTimedOut: the operation timed out (ETIMEDOUT).
	CodeTimedOut ErrorCode = "ETIMEDOUT"
)

// WorkflowError provides structured error information for engine failures.
type WorkflowError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	cause error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *WorkflowError) Unwrap() error {
	return e.cause
}

// NewTransientIO classifies a persistence fault under one of the
// allow-listed transient codes, keeping the original error in the chain.
func NewTransientIO(code ErrorCode, op string, cause error) *WorkflowError {
	return &WorkflowError{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", op, cause),
		cause:   cause,
	}
}

// NewWorkflowError creates a new structured engine error.
func NewWorkflowError(code ErrorCode, message string, details map[string]interface{}) *WorkflowError {
	return &WorkflowError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewInvalidTransition builds the InvalidTransition error for an entity,
// naming the actual state, the requested target and the state(s) the
// operation permits.
func NewInvalidTransition(entity, actual, target string, allowed []string) *WorkflowError {
	permitted := "none"
	if len(allowed) > 0 {
		permitted = strings.Join(allowed, ", ")
	}
	return &WorkflowError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("%s cannot transition from %q to %q (allowed: %s)", entity, actual, target, permitted),
		Details: map[string]interface{}{
			"entity":  entity,
			"actual":  actual,
			"target":  target,
			"allowed": allowed,
		},
	}
}

// NewNotFound builds the NotFound error for a missing task id.
func NewNotFound(id string) *WorkflowError {
	return &WorkflowError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("task %q not found in index", id),
		Details: map[string]interface{}{"taskId": id},
	}
}

// NewSerializationError wraps a decode failure for a persisted record.
func NewSerializationError(path string, cause error) *WorkflowError {
	return &WorkflowError{
		Code:    CodeSerialization,
		Message: fmt.Sprintf("malformed record %s: %v", path, cause),
		Details: map[string]interface{}{"path": path},
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// IsNotFound reports whether err is a NotFound engine error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	return CodeOf(err) == CodeCircuitOpen
}

// IsInvalidTransition reports whether err is an entity contract violation.
func IsInvalidTransition(err error) bool {
	return CodeOf(err) == CodeInvalidTransition
}
