// Package errors provides the structured error type shared by the dispatcher lanes.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeBudgetExceeded  ErrorCode = "BUDGET_EXCEEDED"
	ErrCodeTurnCancelled   ErrorCode = "TURN_CANCELLED"
	ErrCodeCircuitOpen     ErrorCode = "CIRCUIT_OPEN"
	ErrCodeHandlerPanic    ErrorCode = "HANDLER_PANIC"
	ErrCodeHandlerFailed   ErrorCode = "HANDLER_FAILED"
	ErrCodeMissingArgument ErrorCode = "MISSING_ARGUMENT"
	ErrCodeUnsupported     ErrorCode = "UNSUPPORTED_CAPABILITY"

	ErrCodeHoldFailed    ErrorCode = "HOLD_FAILED"
	ErrCodeConfirmFailed ErrorCode = "CONFIRM_FAILED"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeSearchFailed     ErrorCode = "SEARCH_FAILED"
	ErrCodeDatabaseError    ErrorCode = "DATABASE_ERROR"

	ErrCodeOrchestratorUnavailable ErrorCode = "ORCHESTRATOR_UNAVAILABLE"

	ErrCodeInvalidInbound ErrorCode = "INVALID_INBOUND"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata returns the error with one more metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func NewBudgetExceededError(capability string, budget time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeBudgetExceeded,
		Message:   "budget exceeded",
		Details:   fmt.Sprintf("capability: %s, budget: %s", capability, budget),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTurnCancelledError means the caller gave up on the turn; the capability
// itself is not at fault.
func NewTurnCancelledError(capability string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTurnCancelled,
		Message:   "turn cancelled",
		Details:   fmt.Sprintf("capability: %s, cause: %v", capability, cause),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCircuitOpenError(capability string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   "circuit open",
		Details:   fmt.Sprintf("capability: %s", capability),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewHandlerPanicError(capability string, recovered interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeHandlerPanic,
		Message:   "handler panic",
		Details:   fmt.Sprintf("capability: %s, panic: %v", capability, recovered),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewHandlerFailedError(capability string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHandlerFailed,
		Message:   "handler failed",
		Details:   fmt.Sprintf("capability: %s, error: %s", capability, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingArgumentError is a user-input problem, not a dependency failure.
func NewMissingArgumentError(argument string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingArgument,
		Message:   "missing " + argument,
		Details:   fmt.Sprintf("argument: %s", argument),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnsupportedCapabilityError(capability string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupported,
		Message:   "unsupported capability",
		Details:   fmt.Sprintf("capability: %s", capability),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfirmFailedError(holdID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfirmFailed,
		Message:   "confirmation failed",
		Details:   fmt.Sprintf("holdId: %s, %s", holdID, details),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewOrchestratorUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrchestratorUnavailable,
		Message:   "orchestrator unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInboundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInbound,
		Message:   "invalid inbound message",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize returns err as a StandardError, wrapping foreign errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode reports whether a repeated attempt may succeed.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeBudgetExceeded,
		ErrCodeCircuitOpen,
		ErrCodeHandlerFailed,
		ErrCodeConfirmFailed,
		ErrCodeCacheUnavailable,
		ErrCodeSearchFailed,
		ErrCodeDatabaseError,
		ErrCodeOrchestratorUnavailable:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BUDGET") || strings.Contains(codeStr, "CIRCUIT"):
		return "BACKPRESSURE"
	case strings.Contains(codeStr, "CANCELLED"):
		return "CALLER"
	case strings.Contains(codeStr, "HANDLER"):
		return "HANDLER"
	case strings.Contains(codeStr, "HOLD") || strings.Contains(codeStr, "CONFIRM"):
		return "BOOKING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "CACHE"):
		return "STORAGE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "ORCHESTRATOR"):
		return "FALLBACK"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
