// Package errors provides the typed error values shared by the highlighter,
// the live editor server and the command line.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypePattern    ErrorType = "pattern"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodePatternPanic     = "ERR_PATTERN_PANIC"
	ErrCodePatternTimeout   = "ERR_PATTERN_TIMEOUT"
	ErrCodePatternCompile   = "ERR_PATTERN_COMPILE"
	ErrCodeInvalidInput     = "ERR_INVALID_INPUT"
	ErrCodeInvalidMessage   = "ERR_INVALID_MESSAGE"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeSessionNotFound  = "ERR_SESSION_NOT_FOUND"
	ErrCodeConnectionClosed = "ERR_CONNECTION_CLOSED"
	ErrCodeListenFailed     = "ERR_LISTEN_FAILED"
	ErrCodeServeFailed      = "ERR_SERVE_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Error is a structured error type with context.
type Error struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Rule        string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Rule != "" {
		parts = append(parts, "rule:"+e.Rule)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile adds file location information.
func (e *Error) WithFile(filePath string) *Error {
	e.FilePath = filePath

	return e
}

// NewPatternError reports a highlighting rule that failed during one pass.
// The pass result is discarded and the remaining rules still run, so these
// are always recoverable.
func NewPatternError(rule, code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypePattern,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Rule:        rule,
		Recoverable: true,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewNetworkError creates a transport error.
func NewNetworkError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}

	return false
}

// IsPatternError checks if an error came from a highlighting rule.
func IsPatternError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypePattern
	}

	return false
}

// IsType checks whether err carries the given error type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}

	return false
}

// Wrap wraps a plain error as an internal error unless it already is one of
// ours, in which case it is returned unchanged.
func Wrap(err error, code, message string) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return NewInternalError(code, message, err)
}

// As is re-exported so callers do not need to import the standard errors
// package alongside this one.
func As(err error, target any) bool {
	return errors.As(err, target)
}
