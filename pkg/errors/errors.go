// Package errors provides the structured error type used across metacache,
// carrying an error code, a category and the component/operation that failed.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

// Error codes, grouped by category.
const (
	// Configuration
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Connection
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	ErrCodeNetworkError     ErrorCode = "NETWORK_ERROR"

	// Storage backend
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"

	// Filesystem
	ErrCodePathInvalid  ErrorCode = "PATH_INVALID"
	ErrCodeFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrCodeNotSymlink   ErrorCode = "FILE_NOT_SYMLINK"

	// Resource
	ErrCodeCacheFull ErrorCode = "CACHE_FULL"

	// Operation
	ErrCodeOperationTimeout  ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"

	// Internal
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory is the coarse grouping of an ErrorCode.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryStorage       ErrorCategory = "storage"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryResource      ErrorCategory = "resource"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// MetacacheError is a structured error with context.
type MetacacheError struct {
	Code     ErrorCode         `json:"code"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Context  map[string]string `json:"context,omitempty"`
	Cause    error             `json:"-"`

	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *MetacacheError) Error() string {
	var msg string
	switch {
	case e.Component != "" && e.Operation != "":
		msg = fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
	case e.Component != "":
		msg = fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	default:
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *MetacacheError) Unwrap() error {
	return e.Cause
}

// Is matches another *MetacacheError with the same code.
func (e *MetacacheError) Is(target error) bool {
	if t, ok := target.(*MetacacheError); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed representation for logs.
func (e *MetacacheError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
		}
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("MetacacheError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error encoded as JSON.
func (e *MetacacheError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates an error with defaults derived from code.
func NewError(code ErrorCode, message string) *MetacacheError {
	return &MetacacheError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Context:   make(map[string]string),
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// Newf is NewError with a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *MetacacheError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory maps a code to its category.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeConfigValidation, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeConnectionFailed, ErrCodeNetworkError:
		return CategoryConnection
	case ErrCodeObjectNotFound, ErrCodeBucketNotFound, ErrCodeStorageRead, ErrCodeAccessDenied:
		return CategoryStorage
	case ErrCodePathInvalid, ErrCodeFileNotFound, ErrCodeNotSymlink:
		return CategoryFilesystem
	case ErrCodeCacheFull:
		return CategoryResource
	case ErrCodeOperationTimeout, ErrCodeOperationCanceled, ErrCodeValidationFailed:
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault reports whether callers may retry errors with code.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeConnectionFailed, ErrCodeNetworkError, ErrCodeOperationTimeout, ErrCodeStorageRead:
		return true
	}
	return false
}

// WithContext adds a key/value pair.
func (e *MetacacheError) WithContext(key, value string) *MetacacheError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component.
func (e *MetacacheError) WithComponent(component string) *MetacacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation.
func (e *MetacacheError) WithOperation(operation string) *MetacacheError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *MetacacheError) WithCause(cause error) *MetacacheError {
	e.Cause = cause
	return e
}

// CodeOf returns the code of the first MetacacheError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var me *MetacacheError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a MetacacheError with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &MetacacheError{Code: code})
}

// IsNotFound reports whether err means the path or object does not exist.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeFileNotFound) || HasCode(err, ErrCodeObjectNotFound)
}

// IsInvalidArgument reports whether err is a caller-side argument error.
func IsInvalidArgument(err error) bool {
	return HasCode(err, ErrCodePathInvalid) || HasCode(err, ErrCodeValidationFailed)
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var me *MetacacheError
	if stderrors.As(err, &me) {
		return me.Retryable
	}
	return false
}
