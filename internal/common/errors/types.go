// Package errors defines the structured error taxonomy used across the bridge.
// Every failure that crosses a component boundary is an *AppError so the
// request handler can map it to an HTTP status and the API client can decide
// whether a retry is worthwhile.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeSignature represents a failed webhook signature check
	ErrTypeSignature ErrorType = "signature"
	// ErrTypeMalformed represents a structurally invalid inbound payload
	ErrTypeMalformed ErrorType = "malformed_payload"
	// ErrTypeUnsupported represents an event type outside the recognized set
	ErrTypeUnsupported ErrorType = "unsupported_event"
	// ErrTypeAuth represents credential or token failures
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeTransient represents retryable downstream failures (network, 429, 5xx)
	ErrTypeTransient ErrorType = "transient"
	// ErrTypePermanent represents non-retryable downstream failures
	ErrTypePermanent ErrorType = "permanent"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// SignatureError creates a new signature verification error
func SignatureError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeSignature,
		Message: msg,
	}
}

// MalformedPayloadError creates a new malformed payload error
func MalformedPayloadError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeMalformed,
		Message: msg,
		Cause:   cause,
	}
}

// UnsupportedEventError creates an error for an event type the bridge does not handle
func UnsupportedEventError(eventType string) *AppError {
	return &AppError{
		Type:    ErrTypeUnsupported,
		Message: fmt.Sprintf("event type %q is not handled", eventType),
	}
}

// AuthError creates a new authentication error
func AuthError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Cause:   cause,
	}
}

// TransientError creates a new retryable downstream error
func TransientError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransient,
		Message: msg,
		Cause:   cause,
	}
}

// PermanentError creates a new non-retryable downstream error
func PermanentError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypePermanent,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error (or any error it wraps) is of a specific type
func IsType(err error, errType ErrorType) bool {
	return GetType(err) == errType
}

// GetType returns the error type of the first AppError in the chain,
// ErrTypeInternal when there is none
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsRetryable reports whether the error is worth retrying on the same invocation.
// Only transient downstream failures qualify; timeouts abort the invocation.
func IsRetryable(err error) bool {
	return GetType(err) == ErrTypeTransient
}
