package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// AmanError is the structured error type for amansearch.
// It provides rich context for error handling, logging, and user presentation.
type AmanError struct {
	// Code is the unique error code (e.g., "ERR_104_UNKNOWN_COLLECTION").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AmanError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AmanError.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AmanError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AmanError from an existing error.
// The error's message becomes the AmanError message.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AmanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// UnknownCollectionError reports a collection handle that resolves to no index.
// It reflects a caller or configuration mistake and is never retried.
func UnknownCollectionError(handle string) *AmanError {
	return New(ErrCodeUnknownCollection, fmt.Sprintf("unknown collection handle %q", handle), nil).
		WithDetail("handle", handle).
		WithSuggestion("Add the handle under 'collections' in the config or the alias file")
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *AmanError {
	return New(ErrCodeFileNotFound, message, cause)
}

// FileError classifies a failed filesystem operation on path. Missing files,
// denied permissions and a full disk get their own codes.
func FileError(op, path string, err error) *AmanError {
	if err == nil {
		return nil
	}
	code := ErrCodeInternal
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = ErrCodeFileNotFound
	case errors.Is(err, fs.ErrPermission):
		code = ErrCodeFilePermission
	case errors.Is(err, syscall.ENOSPC):
		code = ErrCodeDiskFull
	}
	return New(code, fmt.Sprintf("failed to %s %s", op, path), err).WithDetail("path", path)
}

// ConfigFileError classifies a config file that could not be read.
func ConfigFileError(path string, err error) *AmanError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return New(ErrCodeConfigNotFound, "config file not found: "+path, err).
			WithDetail("path", path).
			WithSuggestion("Run 'amansearch config init' or check the --config path")
	case errors.Is(err, fs.ErrPermission):
		return New(ErrCodeConfigPermission, "config file is not readable: "+path, err).
			WithDetail("path", path).
			WithSuggestion("Check the file permissions")
	default:
		return ConfigError("failed to read config file "+path, err).WithDetail("path", path)
	}
}

// NetworkError creates an engine connectivity error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *AmanError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// SearchError creates an engine-side execution error.
func SearchError(message string, cause error) *AmanError {
	return New(ErrCodeSearchFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AmanError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AmanError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an AmanError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first AmanError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from the first AmanError in the chain.
// Returns empty string if there is none.
func GetCategory(err error) Category {
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
