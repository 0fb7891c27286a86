package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the workflow core.
type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION"
	ErrCodeInvalidStep      ErrorCode = "INVALID_STEP"
	ErrCodeInvalidRule      ErrorCode = "INVALID_RULE"
	ErrCodeInvalidGraph     ErrorCode = "INVALID_GRAPH"
	ErrCodeExecution        ErrorCode = "EXECUTION"
	ErrCodeConditionFailed  ErrorCode = "CONDITION_FAILED"
	ErrCodeStepLimitReached ErrorCode = "STEP_LIMIT_REACHED"
)

// Sentinel errors for orchestrator preconditions.
var (
	// ErrWorkflowNotFound is returned when a workflow ID is not registered.
	ErrWorkflowNotFound = errors.New("workflow not registered")
	// ErrExecutorNotSet is returned when execution is requested without an executor.
	ErrExecutorNotSet = errors.New("executor not set")
	// ErrExecutionNotFound is returned when an execution record does not exist.
	ErrExecutionNotFound = errors.New("execution not found")
)

// Error is a structured workflow error with code, message, and cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ValidationError carries the accumulated violations of a validation pass.
// Violations are collected exhaustively instead of failing fast so that a
// single call reports every problem.
type ValidationError struct {
	Subject    string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s validation failed: %s",
		ErrCodeValidation, e.Subject, strings.Join(e.Violations, "; "))
}

// NewValidationError creates a ValidationError for the given subject.
func NewValidationError(subject string, violations []string) *ValidationError {
	return &ValidationError{Subject: subject, Violations: violations}
}
