package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors.
// Only ErrConfig, and an empty host or source list reported as ErrInput,
// abort a whole run. Everything else is scoped to one host or one source.
const (
	ErrConfig   = "CONFIG"
	ErrInput    = "INPUT"
	ErrAuth     = "AUTH"
	ErrTransfer = "TRANSFER"
	ErrTimeout  = "TIMEOUT"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrTransfer code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrTransfer,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if the outermost structured Error in the chain has the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var kfErr *Error
	if errors.As(err, &kfErr) {
		return kfErr.Code == code
	}
	return false
}

// HasCode reports whether any structured Error in the chain carries code.
// An AuthError caused by a timed out ssh-copy-id matches both ErrAuth and ErrTimeout.
func HasCode(err error, code string) bool {
	for err != nil {
		var kfErr *Error
		if !errors.As(err, &kfErr) {
			return false
		}
		if kfErr.Code == code {
			return true
		}
		err = kfErr.Cause
	}
	return false
}

// Code returns the code of the outermost structured Error, or "" if there is none.
func Code(err error) string {
	var kfErr *Error
	if errors.As(err, &kfErr) {
		return kfErr.Code
	}
	return ""
}

// Summary returns the first line of an error without the failure symbol.
// Used where a full multi-line rendering would break line-oriented output.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var kfErr *Error
	if errors.As(err, &kfErr) {
		return kfErr.Message
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return strings.TrimSpace(line)
}
