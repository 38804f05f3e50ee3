package errors

import (
	"fmt"
)

// FlexError is the structured error type for FlexSearch.
// It provides rich context for error handling, logging, and user presentation.
type FlexError struct {
	// Code is the unique error code (e.g., "ERR_102_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Lifecycle, IO, Validation, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *FlexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FlexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with FlexError.
func (e *FlexError) Is(target error) bool {
	if t, ok := target.(*FlexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FlexError) WithDetail(key, value string) *FlexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new FlexError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *FlexError {
	return &FlexError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new FlexError with a formatted message.
func Newf(code string, format string, args ...any) *FlexError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a FlexError from an existing error.
// The error's message becomes the FlexError message.
func Wrap(code string, err error) *FlexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IndexNotFound creates the error returned when an index name is unknown.
func IndexNotFound(name string) *FlexError {
	return Newf(ErrCodeIndexNotFound, "index %q does not exist", name).
		WithDetail("index", name)
}

// IndexAlreadyExists creates the error returned when adding a duplicate index.
func IndexAlreadyExists(name string) *FlexError {
	return Newf(ErrCodeIndexAlreadyExists, "index %q already exists", name).
		WithDetail("index", name)
}

// IndexIsOffline creates the error returned when operating on a closed index.
func IndexIsOffline(name string) *FlexError {
	return Newf(ErrCodeIndexIsOffline, "index %q is offline", name).
		WithDetail("index", name)
}

// IndexIsOpening creates the error returned when an index is mid-open.
func IndexIsOpening(name string) *FlexError {
	return Newf(ErrCodeIndexIsOpening, "index %q is opening", name).
		WithDetail("index", name)
}

// RegistrationMissing creates the error returned when an online index has no
// registered runtime.
func RegistrationMissing(name string) *FlexError {
	return Newf(ErrCodeRegistrationMissing, "no runtime registered for index %q", name).
		WithDetail("index", name)
}

// VersionMismatch creates the optimistic-concurrency failure for a document.
func VersionMismatch(id string) *FlexError {
	return Newf(ErrCodeVersionMismatch, "version conflict updating document %q", id).
		WithDetail("id", id)
}

// MissingId creates the error returned for an empty document id.
func MissingId() *FlexError {
	return New(ErrCodeMissingId, "document id must not be empty", nil)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *FlexError {
	return New(ErrCodeValidationFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FlexError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*FlexError); ok {
		return fe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a FlexError.
// Returns empty string if not a FlexError.
func GetCode(err error) string {
	if fe, ok := err.(*FlexError); ok {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category from a FlexError.
// Returns empty string if not a FlexError.
func GetCategory(err error) Category {
	if fe, ok := err.(*FlexError); ok {
		return fe.Category
	}
	return ""
}
