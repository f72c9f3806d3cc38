// Package errors provides standardized error handling for the broadcast engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidSchedule     ErrorCode = "INVALID_SCHEDULE"
	ErrCodeUnknownTarget       ErrorCode = "UNKNOWN_TARGET"
	ErrCodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeImmutableMessage    ErrorCode = "IMMUTABLE_MESSAGE"
	ErrCodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf returns the error code of err, or empty when err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// Error Constructors
// ==========================

// NewInvalidInputError creates a non-retryable authoring validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Malformed authoring data",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError creates a non-retryable lifecycle error.
func NewInvalidTransitionError(messageID, from, attempted string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Illegal message lifecycle transition",
		Details:   fmt.Sprintf("messageId: %s, status: %s, attempted: %s", messageID, from, attempted),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidScheduleError creates a non-retryable scheduling error.
func NewInvalidScheduleError(when time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSchedule,
		Message:   "Schedule time must be in the future",
		Details:   fmt.Sprintf("when: %s", when.UTC().Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownTargetError creates a non-retryable resolver error.
func NewUnknownTargetError(descriptor string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTarget,
		Message:   "Target descriptor names no known institution or group",
		Details:   fmt.Sprintf("target: %s", descriptor),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConcurrencyConflictError creates a retryable optimistic-write error.
func NewConcurrencyConflictError(collection, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConcurrencyConflict,
		Message:   "Conditional write lost an optimistic-concurrency race",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-record error.
func NewNotFoundError(collection, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Record not found",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewImmutableMessageError creates a non-retryable edit error.
func NewImmutableMessageError(messageID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeImmutableMessage,
		Message:   "Message content is immutable outside Draft",
		Details:   fmt.Sprintf("messageId: %s, status: %s", messageID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable storage infrastructure error.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Document store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
