// Package errors provides structured error types for the dataset IO layer.
// All errors include a category, code, message and cause for consistent
// handling across planners, engines and storage.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryMetadata   ErrorCategory = "METADATA"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryPlan       ErrorCategory = "PLAN"
	ErrCategoryExec       ErrorCategory = "EXEC"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeSchemaMismatch        = "SCHEMA_MISMATCH"
	CodeDivisionOverlap       = "DIVISION_OVERLAP"
	CodeUnknownColumn         = "UNKNOWN_COLUMN"
	CodeNotDictionaryEncoded  = "NOT_DICTIONARY_ENCODED"
	CodeInvalidSchema         = "INVALID_SCHEMA"
	CodePartitionColumnClash  = "PARTITION_COLUMN_CLASH"
	CodeDestinationNotEmpty   = "DESTINATION_NOT_EMPTY"

	// Metadata codes
	CodeCorruptFile    = "CORRUPT_FILE"
	CodeNoDataFiles    = "NO_DATA_FILES"
	CodeFooterMismatch = "FOOTER_MISMATCH"

	// Storage codes
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeWriteFailed    = "WRITE_FAILED"
	CodeReadFailed     = "READ_FAILED"

	// Plan / exec codes
	CodeNotImplemented    = "NOT_IMPLEMENTED"
	CodeEngineUnsupported = "ENGINE_UNSUPPORTED"
	CodeTaskFailed        = "TASK_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// DatasetError is the structured error type used throughout the system.
type DatasetError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *DatasetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DatasetError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *DatasetError) Is(target error) bool {
	var t *DatasetError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new DatasetError.
func New(category ErrorCategory, code, message string) *DatasetError {
	return &DatasetError{Category: category, Code: code, Message: message}
}

// Wrap creates a new DatasetError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *DatasetError {
	return &DatasetError{Category: category, Code: code, Message: message, Cause: cause}
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a DatasetError.
func GetCode(err error) string {
	var de *DatasetError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// hasCode reports whether the chain contains a DatasetError with the code.
func hasCode(err error, code string) bool {
	var de *DatasetError
	return errors.As(err, &de) && de.Code == code
}

// Constructors for the error taxonomy.

// NewSchemaMismatch reports an append-time column or dtype conflict.
func NewSchemaMismatch(message string) *DatasetError {
	return New(ErrCategoryValidation, CodeSchemaMismatch, message)
}

// NewDivisionOverlap reports an append-time sort-key ordering violation.
func NewDivisionOverlap(message string) *DatasetError {
	return New(ErrCategoryValidation, CodeDivisionOverlap, message)
}

// NewUnknownColumn reports a requested column absent from the schema.
func NewUnknownColumn(column string) *DatasetError {
	return New(ErrCategoryValidation, CodeUnknownColumn,
		fmt.Sprintf("column %q not found in schema", column))
}

// NewNotDictionaryEncoded reports a categorical request on a plain column.
func NewNotDictionaryEncoded(column string) *DatasetError {
	return New(ErrCategoryValidation, CodeNotDictionaryEncoded,
		fmt.Sprintf("column %q not dictionary-encoded", column))
}

// NewNotImplemented reports a documented, fail-fast limitation.
func NewNotImplemented(message string) *DatasetError {
	return New(ErrCategoryPlan, CodeNotImplemented, message)
}

// NewCorruptFile reports an unreadable or truncated data file.
func NewCorruptFile(path string, cause error) *DatasetError {
	return Wrap(ErrCategoryMetadata, CodeCorruptFile,
		fmt.Sprintf("corrupt data file %q", path), cause)
}

// NewStorageError wraps a storage backend failure.
func NewStorageError(code, message string, cause error) *DatasetError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *DatasetError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// Predicates used by callers and tests.

func IsSchemaMismatch(err error) bool  { return hasCode(err, CodeSchemaMismatch) }
func IsDivisionOverlap(err error) bool { return hasCode(err, CodeDivisionOverlap) }
func IsUnknownColumn(err error) bool   { return hasCode(err, CodeUnknownColumn) }
func IsNotImplemented(err error) bool  { return hasCode(err, CodeNotImplemented) }

func IsNotDictionaryEncoded(err error) bool {
	return hasCode(err, CodeNotDictionaryEncoded)
}

func IsDestinationNotEmpty(err error) bool {
	return hasCode(err, CodeDestinationNotEmpty)
}
