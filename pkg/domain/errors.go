package domain

import (
	"fmt"
	"strings"
)

// Error types. These are stable machine-readable tags; transports map them
// to their own status codes.
const (
	TypeStructureError     = "StructureError"
	TypeValidationError    = "ValidationError"
	TypeAuthorizationError = "AuthorizationError"
	TypeDataError          = "DataError"
	TypeNetworkError       = "NetworkError"
	TypeTimeoutError       = "TimeoutError"
	TypeAPIError           = "ApiError"
	TypeRateLimitError     = "RateLimitError"
	TypeResourceError      = "ResourceError"
	TypeCancellationError  = "CancellationError"
	TypeExecutionError     = "ExecutionError"
	// TypeRetryable marks errors explicitly flagged transient by an
	// operation executor.
	TypeRetryable = "RetryableError"
)

// Error categories, orthogonal to types.
const (
	CategoryStructure     = "structure"
	CategoryValidation    = "validation"
	CategoryAuthorization = "authorization"
	CategoryData          = "data_error"
	CategoryNetwork       = "network"
	CategoryAPI           = "api_error"
	CategoryRateLimit     = "rate_limit"
	CategoryResource      = "resource"
	CategoryCancelled     = "cancelled"
	CategoryExecution     = "execution"
)

// Error is the structured error record surfaced to callers. Context is
// sanitized at construction: no credential material, no raw bodies, no
// URLs carrying secrets.
type Error struct {
	Type        string         `json:"type"`
	Category    string         `json:"category"`
	Message     string         `json:"message"`
	OperationID string         `json:"operationId,omitempty"`
	Recoverable bool           `json:"recoverable"`
	Context     map[string]any `json:"context,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	// StatusCode carries the HTTP status for ApiError, zero otherwise.
	StatusCode int `json:"-"`
	// RetryAfterMs carries the wait hint for RateLimitError and
	// Retry-After-bearing ApiErrors, zero otherwise.
	RetryAfterMs int64 `json:"retryAfterMs,omitempty"`
}

func (e *Error) Error() string {
	if e.OperationID != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.OperationID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// WithOperation returns a shallow copy tagged with the operation id.
func (e *Error) WithOperation(opID string) *Error {
	c := *e
	c.OperationID = opID
	return &c
}

// WithContext returns a shallow copy with an added context entry. Keys
// that smell like secrets are redacted rather than stored.
func (e *Error) WithContext(key string, value any) *Error {
	c := *e
	c.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		c.Context[k] = v
	}
	if isSensitiveKey(key) {
		value = "[REDACTED]"
	}
	c.Context[key] = value
	return &c
}

// WithSuggestion returns a shallow copy with an appended suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	c := *e
	c.Suggestions = append(append([]string(nil), e.Suggestions...), s)
	return &c
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"password", "token", "secret", "credential", "auth", "key"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

func newError(typ, category, message string) *Error {
	return &Error{Type: typ, Category: category, Message: message}
}

// NewStructureError reports malformed workflow input.
func NewStructureError(message string) *Error {
	return newError(TypeStructureError, CategoryStructure, message)
}

// NewValidationError reports a schema, permission, dependency or type issue.
func NewValidationError(message string) *Error {
	e := newError(TypeValidationError, CategoryValidation, message)
	e.Recoverable = true
	return e
}

// NewAuthorizationError reports a missing permission for a resource.
func NewAuthorizationError(message, resource string) *Error {
	e := newError(TypeAuthorizationError, CategoryAuthorization, message)
	e.Context = map[string]any{"resource": resource}
	return e
}

// NewDataError reports a missing path or wrong JSON shape at runtime.
func NewDataError(message, path string) *Error {
	e := newError(TypeDataError, CategoryData, message)
	e.Recoverable = true
	if path != "" {
		e.Context = map[string]any{"path": path}
	}
	return e
}

// NewNetworkError reports a connection or DNS level failure. Only the
// host survives into context.
func NewNetworkError(message, host string) *Error {
	e := newError(TypeNetworkError, CategoryNetwork, message)
	e.Recoverable = true
	if host != "" {
		e.Context = map[string]any{"host": host}
	}
	return e
}

// NewTimeoutError reports an elapsed per-operation timeout.
func NewTimeoutError(message string, timeoutMs int64) *Error {
	e := newError(TypeTimeoutError, CategoryNetwork, message)
	e.Recoverable = true
	e.Context = map[string]any{"timeoutMs": timeoutMs}
	return e
}

// NewAPIError reports a non-2xx upstream response.
func NewAPIError(message string, statusCode int) *Error {
	e := newError(TypeAPIError, CategoryAPI, message)
	e.StatusCode = statusCode
	e.Recoverable = statusCode == 408 || statusCode == 429 || statusCode >= 500
	e.Context = map[string]any{"statusCode": statusCode}
	return e
}

// NewRateLimitError reports a denied rate-limit acquisition.
func NewRateLimitError(message string, retryAfterMs int64) *Error {
	e := newError(TypeRateLimitError, CategoryRateLimit, message)
	e.RetryAfterMs = retryAfterMs
	e.Context = map[string]any{"retryAfterMs": retryAfterMs}
	e.Suggestions = []string{"wait for retryAfterMs before submitting the next workflow"}
	return e
}

// NewResourceError reports an exceeded execution cap.
func NewResourceError(message string) *Error {
	return newError(TypeResourceError, CategoryResource, message)
}

// NewCancellationError reports a caller-initiated cancellation.
func NewCancellationError(message string) *Error {
	return newError(TypeCancellationError, CategoryCancelled, message)
}

// NewExecutionError is the catch-all for unexpected faults.
func NewExecutionError(message string) *Error {
	return newError(TypeExecutionError, CategoryExecution, message)
}

// NewRetryableError marks a failure explicitly transient so the retry
// policy will absorb it.
func NewRetryableError(message string) *Error {
	e := newError(TypeRetryable, CategoryExecution, message)
	e.Recoverable = true
	return e
}

// AsError coerces any error into a structured *Error, wrapping foreign
// errors as ExecutionError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewExecutionError(err.Error())
}
