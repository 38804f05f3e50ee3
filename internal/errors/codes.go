// Package errors provides structured error handling for FlexSearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Index lifecycle errors
//   - 2XX: Storage and writer errors
//   - 3XX: Document and concurrency errors
//   - 4XX: Validation and query errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryLifecycle indicates index lifecycle errors.
	CategoryLifecycle Category = "LIFECYCLE"
	// CategoryIO indicates storage and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryConcurrency indicates optimistic concurrency failures.
	CategoryConcurrency Category = "CONCURRENCY"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Index lifecycle errors (100-199)
	ErrCodeIndexAlreadyExists  = "ERR_101_INDEX_ALREADY_EXISTS"
	ErrCodeIndexNotFound       = "ERR_102_INDEX_NOT_FOUND"
	ErrCodeIndexIsOffline      = "ERR_103_INDEX_IS_OFFLINE"
	ErrCodeIndexIsOpening      = "ERR_104_INDEX_IS_OPENING"
	ErrCodeRegistrationMissing = "ERR_105_INDEX_REGISTRATION_MISSING"

	// Storage errors (200-299)
	ErrCodeOpeningIndexWriter = "ERR_201_OPENING_INDEX_WRITER"
	ErrCodeCorruptIndex       = "ERR_202_CORRUPT_INDEX"
	ErrCodeStoreFailed        = "ERR_203_STORE_FAILED"
	ErrCodePipelineClosed     = "ERR_204_WRITE_PIPELINE_CLOSED"

	// Document and concurrency errors (300-399)
	ErrCodeVersionMismatch = "ERR_301_VERSION_MISMATCH"
	ErrCodeMissingId       = "ERR_302_MISSING_ID"

	// Validation and query errors (400-499)
	ErrCodeUnknownField         = "ERR_401_UNKNOWN_FIELD"
	ErrCodeStoreOnlyField       = "ERR_402_STORE_ONLY_FIELD"
	ErrCodeUnknownQueryOperator = "ERR_403_UNKNOWN_QUERY_OPERATOR"
	ErrCodeInvalidCondition     = "ERR_404_INVALID_CONDITION"
	ErrCodeUnknownSearchProfile = "ERR_405_UNKNOWN_SEARCH_PROFILE"
	ErrCodeValidationFailed     = "ERR_406_VALIDATION_FAILED"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "102" from "ERR_102_INDEX_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryLifecycle
	case '2':
		return CategoryIO
	case '3':
		return CategoryConcurrency
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeVersionMismatch:
		// Version conflicts are an expected outcome of optimistic
		// concurrency, not a system failure.
		return SeverityWarning
	}
	return SeverityError
}
