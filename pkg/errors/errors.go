// Package errors provides structured error handling for formtap with error
// categorization, key-value details, stack traces, and the retryability
// predicates the HTTP client's layered backoff policies branch on.
//
// Errors fall into three retry classes:
//   - transport errors (timeout, connection): retried by the outer policy
//   - service errors (rate_limit, internal, unavailable, truncated): retried
//     by the inner policy
//   - everything else: fatal on first occurrence
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeBadRequest represents HTTP 400 validation failures
	ErrorTypeBadRequest ErrorType = "bad_request"
	// ErrorTypeUnauthorized represents HTTP 401 credential failures
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeForbidden represents HTTP 403 permission failures
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeNotFound represents HTTP 404 missing resources
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRateLimit represents HTTP 429 rate limit rejections
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeInternal represents HTTP 500 upstream faults
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeUnavailable represents HTTP 503 service outages
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeHTTP represents any other non-2xx response
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeTimeout represents request timeouts
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents transport-level connection failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTruncated represents a response body cut off mid-transfer
	ErrorTypeTruncated ErrorType = "truncated"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeValidation represents input validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeData represents data shaping/decoding errors
	ErrorTypeData ErrorType = "data"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. Returns nil if the
// input error is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// TypeOf returns the error's category, or ErrorTypeHTTP if err is not a
// structured Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeHTTP
	}
	return e.Type
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsTransportError reports whether the error belongs to the transport retry
// class: timeouts and connection failures.
func IsTransportError(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	}
	return false
}

// IsServiceError reports whether the error belongs to the transient service
// retry class: rate limiting, upstream faults, outages, and truncated bodies.
func IsServiceError(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeRateLimit, ErrorTypeInternal, ErrorTypeUnavailable, ErrorTypeTruncated:
		return true
	}
	return false
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
