// Package errors provides standardized domain errors with codes for
// the tractwise pipeline.
//
// Usage:
//
//	// In engines - return typed errors
//	if !simple {
//	    return errors.Geometryf("region %s: self-intersecting ring", id)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrGeometry) {
//	    ...
//	}
//
//	// Or inspect the code to apply the propagation policy
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && !domainErr.Fatal() {
//	    report.Warn(domainErr)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the pipeline.
const (
	// CodeProjection marks an unknown or mathematically undefined
	// coordinate reference transformation. Fatal: every downstream
	// area ratio would be invalid.
	CodeProjection Code = "PROJECTION"
	// CodeGeometry marks a malformed input polygon. Fatal for the
	// run unless the caller opts into skip-and-log; never repaired.
	CodeGeometry Code = "GEOMETRY"
	// CodeUnmatchedRegion marks an attribute row with no geometry, or
	// geometry with no attribute row. Non-fatal, counted.
	CodeUnmatchedRegion Code = "UNMATCHED_REGION"
	// CodeDegenerateArea marks a zero-area source region. Non-fatal,
	// produces no allocated record.
	CodeDegenerateArea Code = "DEGENERATE_AREA"
	// CodeValidation marks invalid configuration or input framing.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound marks a missing input file or lookup key.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInternal marks everything else.
	CodeInternal Code = "INTERNAL"
)

// Fatal reports whether the code is structural: structural errors
// abort the run, data-completeness errors are recorded and skipped.
func (c Code) Fatal() bool {
	switch c {
	case CodeUnmatchedRegion, CodeDegenerateArea:
		return false
	default:
		return true
	}
}

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Fatal reports whether this error aborts the run.
func (e *Error) Fatal() bool {
	return e.Code.Fatal()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrProjection      = &Error{Code: CodeProjection, Message: "projection error"}
	ErrGeometry        = &Error{Code: CodeGeometry, Message: "malformed geometry"}
	ErrUnmatchedRegion = &Error{Code: CodeUnmatchedRegion, Message: "unmatched region"}
	ErrDegenerateArea  = &Error{Code: CodeDegenerateArea, Message: "degenerate area"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// Projection creates a projection error.
func Projection(msg string) *Error {
	return &Error{Code: CodeProjection, Message: msg}
}

// Projectionf creates a projection error with formatted message.
func Projectionf(format string, args ...any) *Error {
	return &Error{Code: CodeProjection, Message: fmt.Sprintf(format, args...)}
}

// Geometry creates a geometry error.
func Geometry(msg string) *Error {
	return &Error{Code: CodeGeometry, Message: msg}
}

// Geometryf creates a geometry error with formatted message.
func Geometryf(format string, args ...any) *Error {
	return &Error{Code: CodeGeometry, Message: fmt.Sprintf(format, args...)}
}

// UnmatchedRegion creates an unmatched region error.
func UnmatchedRegion(msg string) *Error {
	return &Error{Code: CodeUnmatchedRegion, Message: msg}
}

// UnmatchedRegionf creates an unmatched region error with formatted message.
func UnmatchedRegionf(format string, args ...any) *Error {
	return &Error{Code: CodeUnmatchedRegion, Message: fmt.Sprintf(format, args...)}
}

// DegenerateArea creates a degenerate area error.
func DegenerateArea(msg string) *Error {
	return &Error{Code: CodeDegenerateArea, Message: msg}
}

// DegenerateAreaf creates a degenerate area error with formatted message.
func DegenerateAreaf(format string, args ...any) *Error {
	return &Error{Code: CodeDegenerateArea, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
