package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrReportNotFound indicates the report was not found
	ErrReportNotFound = fmt.Errorf("report not found: %w", ErrNotFound)

	// ErrImageNotFound indicates the image attachment was not found
	ErrImageNotFound = fmt.Errorf("image not found: %w", ErrNotFound)

	// ErrVideoNotFound indicates the video attachment was not found
	ErrVideoNotFound = fmt.Errorf("video not found: %w", ErrNotFound)

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates one or more report fields failed validation
	ErrValidation = errors.New("validation failed")

	// ErrPayloadTooLarge indicates an upload exceeds the configured ceiling
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedMedia indicates an upload is not of the expected media family
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrStorageWrite indicates blob storage could not persist a file
	ErrStorageWrite = errors.New("storage write failed")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeValidation       = "VALIDATION_FAILED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeStorageWrite     = "STORAGE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// FieldError describes a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of a submission.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap returns ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Add appends a field violation
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was recorded
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Has reports whether the given field was recorded
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e when it holds violations, nil otherwise
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsValidation checks if the error is a field validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// GetValidationError extracts a ValidationError from an error if it exists
func GetValidationError(err error) *ValidationError {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return nil
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsValidation(err):
		return CodeValidation
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrUnsupportedMedia):
		return CodeUnsupportedMedia
	case errors.Is(err, ErrStorageWrite):
		return CodeStorageWrite
	default:
		return CodeInternalError
	}
}
