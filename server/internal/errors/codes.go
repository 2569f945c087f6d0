package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures inside background AI jobs.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the target content, persona or account vanished before the job ran.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeGuardRejected indicates an expected short-circuit: closed thread, AI author, self-vote.
	ErrCodeGuardRejected ErrorCode = "GUARD_REJECTED"
	// ErrCodeCompletionFailed indicates the completion service returned no usable text.
	ErrCodeCompletionFailed ErrorCode = "COMPLETION_FAILED"
	// ErrCodePersistenceFailed indicates the unit of work was rolled back.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// AIError represents a structured error for AI operations.
type AIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value any) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NotFound creates a not-found error for the named entity.
func NotFound(entity string, id int32) *AIError {
	return &AIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
	}
}

// GuardRejected creates a guard short-circuit error.
func GuardRejected(reason string) *AIError {
	return &AIError{Code: ErrCodeGuardRejected, Message: reason}
}

// CompletionFailed creates a completion failure error.
func CompletionFailed(msg string) *AIError {
	return &AIError{Code: ErrCodeCompletionFailed, Message: msg}
}

// PersistenceFailed creates a persistence failure error.
func PersistenceFailed(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodePersistenceFailed, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}
