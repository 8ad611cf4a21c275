// Package errors provides structured error handling for gridtable.
//
// Errors carry an ErrorType that mirrors the engine's failure taxonomy:
// construction errors (invalid schema or request), capacity errors (record
// too long, aggregation memory cap), unsupported operations, and transient
// collaborator errors that a caller may retry. The grid table core never
// retries on its own.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConstruction represents invalid schemas, builders or scan requests
	ErrorTypeConstruction ErrorType = "construction"
	// ErrorTypeCapacity represents resource cap violations
	ErrorTypeCapacity ErrorType = "capacity"
	// ErrorTypeUnsupported represents operations the engine does not support
	ErrorTypeUnsupported ErrorType = "unsupported"
	// ErrorTypeData represents malformed encoded data or values
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents connection errors in external collaborators
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents timeout errors in external collaborators
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeNotFound represents missing resources
	ErrorTypeNotFound ErrorType = "not_found"
)

// Sentinel causes. Typed errors wrap these so callers can use errors.Is.
var (
	ErrInvalidSchema          = errors.New("invalid schema")
	ErrMemoryCapExceeded      = errors.New("aggregation memory cap exceeded")
	ErrRecordTooLong          = errors.New("record exceeds max record length")
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")
	ErrScannerClosed          = errors.New("scanner closed")
	ErrBuilderClosed          = errors.New("builder closed")
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

// Wrap wraps an existing error with additional context
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

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, fmt.Sprintf(format, args...))
	if wrapped.Stack == nil {
		wrapped.Stack = captureStack(2)
	}
	return wrapped
}

// Construction returns a construction error wrapping ErrInvalidSchema.
func Construction(format string, args ...interface{}) *Error {
	return &Error{
		Type:    ErrorTypeConstruction,
		Message: fmt.Sprintf(format, args...),
		Cause:   ErrInvalidSchema,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
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
