// Package apperrors provides the coded error taxonomy shared by the pipeline
// components.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure class.
type ErrorCode string

const (
	ErrCodeGeocodeNotFound     ErrorCode = "GEOCODE_NOT_FOUND"
	ErrCodeGeocodeProvider     ErrorCode = "GEOCODE_PROVIDER_ERROR"
	ErrCodeRenderAttemptFailed ErrorCode = "RENDER_ATTEMPT_FAILED"
	ErrCodeArtifactMissing     ErrorCode = "ARTIFACT_MISSING"
	ErrCodeUpload              ErrorCode = "UPLOAD_ERROR"
	ErrCodeCommit              ErrorCode = "COMMIT_ERROR"
	ErrCodeConfig              ErrorCode = "CONFIG_ERROR"
	ErrCodeThemeNotFound       ErrorCode = "THEME_NOT_FOUND"
	ErrCodeNoThemes            ErrorCode = "NO_THEMES"
	ErrCodeInvalidBatch        ErrorCode = "INVALID_BATCH"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeCatalog             ErrorCode = "CATALOG_ERROR"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded error that may wrap an underlying cause.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, apperrors.New(code, ""))
// works across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a coded error without a cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable(code)}
}

// Newf is New with formatting.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to err.
func Wrap(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable(code), Err: err}
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// ErrCodeInternal for uncoded errors. A nil error yields "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

// IsRetryable reports whether err belongs to a class the render loop retries.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func retryable(code ErrorCode) bool {
	switch code {
	case ErrCodeRenderAttemptFailed, ErrCodeArtifactMissing:
		return true
	default:
		return false
	}
}
