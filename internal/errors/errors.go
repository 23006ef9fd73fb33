package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeInvalidArgument    ErrorType = "INVALID_ARGUMENT"
	ErrorTypeDecode             ErrorType = "DECODE_ERROR"
	ErrorTypeEmptyInput         ErrorType = "EMPTY_INPUT"
	ErrorTypeMissingSyncFrame   ErrorType = "MISSING_SYNC_FRAME"
	ErrorTypeAnomalousDuplicate ErrorType = "ANOMALOUS_DUPLICATE"
	ErrorTypeIO                 ErrorType = "IO_ERROR"
	ErrorTypeDependencyMissing  ErrorType = "DEPENDENCY_MISSING"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeRateLimited        ErrorType = "RATE_LIMITED"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
)

// Process exit codes used by the CLI.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidArgument = 2
	ExitAnomaly         = 3
)

// AppError represents an application error with additional context.
type AppError struct {
	Type     ErrorType              `json:"type"`
	Message  string                 `json:"message"`
	Code     string                 `json:"code,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	ExitCode int                    `json:"-"`
	Err      error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, exitCode int) *AppError {
	return &AppError{
		Type:     errType,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, exitCode int) *AppError {
	return &AppError{
		Type:     errType,
		Message:  message,
		ExitCode: exitCode,
		Err:      err,
	}
}

// Common error constructors.

// NewInvalidArgumentError creates an error for bad CLI or generator input.
func NewInvalidArgumentError(format string, args ...interface{}) *AppError {
	return New(ErrorTypeInvalidArgument, fmt.Sprintf(format, args...), ExitInvalidArgument)
}

// NewEmptyInputError reports a scan that produced no payloads at all.
func NewEmptyInputError() *AppError {
	return New(ErrorTypeEmptyInput, "no frames found in input video", ExitFailure)
}

// NewMissingSyncFrameError reports that the first observed payload is not a sync record.
func NewMissingSyncFrameError(message string) *AppError {
	return New(ErrorTypeMissingSyncFrame, message, ExitFailure)
}

// NewAnomalousDuplicateError reports frame indices seen more than once or out of range.
func NewAnomalousDuplicateError(count int) *AppError {
	return New(ErrorTypeAnomalousDuplicate,
		fmt.Sprintf("%d anomalous frame record(s) in observed stream", count), ExitAnomaly)
}

// WrapIOError wraps a file or video I/O failure.
func WrapIOError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeIO, message, ExitFailure)
}

// NewDependencyMissingError reports an unavailable external tool.
func NewDependencyMissingError(dependency string, err error) *AppError {
	return Wrap(err, ErrorTypeDependencyMissing, fmt.Sprintf("%s is not available", dependency), ExitFailure)
}

// NewNotFoundError reports a missing resource, such as an unknown run id.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), ExitFailure)
}

// NewRateLimitedError reports a request rejected by the rate limiter.
func NewRateLimitedError() *AppError {
	return New(ErrorTypeRateLimited, "rate limit exceeded", ExitFailure)
}

// WrapInternalError wraps an unexpected error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, ExitFailure)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}
