// Package errors provides structured error types for stampforge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the pipeline and the service
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The conversion pipeline reports exactly four kinds of failure:
//   - INVALID_IMAGE: the source is missing, unreadable or has zero area
//   - EMPTY_MASK: a processing stage produced no foreground cells
//   - WRITE_ERROR: the output file could not be persisted
//   - CONVERSION_ERROR: any other failure, wrapping the original cause
//
// The remaining codes are used by configuration, storage and the HTTP service.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEmptyMask, "threshold removed every pixel")
//	if errors.Is(err, errors.ErrCodeEmptyMask) {
//	    // Ask the user for a higher-contrast source
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeWrite, origErr, "save %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Conversion errors
	ErrCodeInvalidImage Code = "INVALID_IMAGE"
	ErrCodeEmptyMask    Code = "EMPTY_MASK"
	ErrCodeWrite        Code = "WRITE_ERROR"
	ErrCodeConversion   Code = "CONVERSION_ERROR"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeJobNotFound  Code = "JOB_NOT_FOUND"

	// Infrastructure errors
	ErrCodeStorage Code = "STORAGE_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for the first *Error and compares its code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// EnsureCode returns err unchanged if it already carries a code, otherwise it
// wraps err with the given code. A nil err stays nil.
func EnsureCode(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if GetCode(err) != "" {
		return err
	}
	return Wrap(code, err, format, args...)
}

// IsConversionFailure reports whether err is one of the four typed failures
// the conversion pipeline can return.
func IsConversionFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidImage, ErrCodeEmptyMask, ErrCodeWrite, ErrCodeConversion:
		return true
	}
	return false
}
