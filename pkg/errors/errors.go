// Package errors defines the coded errors hardcopy surfaces to callers.
//
// Codes are stable strings so callers and tests can branch on the failure
// category (tool unavailable, transfer failure, validation failure, read
// failure) without matching on message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category.
type ErrorCode string

const (
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Tool availability
	ErrToolNotFound         ErrorCode = "TOOL_NOT_FOUND"
	ErrPlatformUnsupported  ErrorCode = "PLATFORM_UNSUPPORTED"
	ErrUnexpectedExitStatus ErrorCode = "UNEXPECTED_EXIT_STATUS"

	// Copy pipeline
	ErrTransferFailed   ErrorCode = "TRANSFER_FAILED"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrReadFailed       ErrorCode = "READ_FAILED"

	// Configuration
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// Error is an error with a code and optional structured details.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates an Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates an Error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err. It returns nil when err is nil, so callers must not
// assign the result to an error variable without checking err first.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps err with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if any error in err's chain has the given code
func IsErrorCode(err error, code ErrorCode) bool {
	var codedErr *Error
	for err != nil {
		if errors.As(err, &codedErr) {
			if codedErr.Code == code {
				return true
			}
			err = codedErr.Wrapped
			continue
		}
		return false
	}
	return false
}

// GetErrorCode returns the code of the outermost coded error, or ErrUnknown
func GetErrorCode(err error) ErrorCode {
	var codedErr *Error
	if errors.As(err, &codedErr) {
		return codedErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details of the outermost coded error
func GetErrorDetails(err error) map[string]interface{} {
	var codedErr *Error
	if errors.As(err, &codedErr) {
		return codedErr.Details
	}
	return nil
}
