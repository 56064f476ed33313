// Package errors provides unified error handling with structured codes.
// No error in the pipeline core escalates to a process crash; every failure
// degrades to "keep the last good overlay" or "show untranslated source".
package errors

import "fmt"

// Code classifies pipeline failures.
type Code string

const (
	CodeUnknown  Code = "UNKNOWN"
	CodeInternal Code = "INTERNAL"

	// CodeTransientEngine marks an extraction or translation adapter that
	// is unavailable this cycle; the affected step is skipped and the prior
	// overlay kept.
	CodeTransientEngine Code = "TRANSIENT_ENGINE"
	// CodeTimeout marks an adapter call that exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
	// CodeStaleResult marks a resolved translation superseded by a newer
	// generation. Not a true error: silently discarded, cached for reuse.
	CodeStaleResult Code = "STALE_RESULT"
	// CodeGeometryMismatch marks a block box outside current frame bounds
	// after a region or resolution change; block identities reset.
	CodeGeometryMismatch Code = "GEOMETRY_MISMATCH"
	// CodeCacheCorruption marks an inconsistent cache; the cache clears and
	// rebuilds. Fatal only to the cache, never the process.
	CodeCacheCorruption Code = "CACHE_CORRUPTION"

	// Translation sidecar failure modes.
	CodeModelUnavailable Code = "MODEL_UNAVAILABLE"
	CodeOutOfMemory      Code = "OUT_OF_MEMORY"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
)

// AppError is the base error type with a structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the code from an error, walking the cause chain.
func CodeOf(err error) Code {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeUnknown
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially retryable within a
// single resolution attempt. Stale results and geometry mismatches are
// handled by discard/reset, never retried.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeTransientEngine, CodeTimeout, CodeRateLimited:
		return true
	default:
		return false
	}
}
