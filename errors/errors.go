package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another *AppError by code, so errors.Is(err, CycleDetected("", ""))
// works regardless of details.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Availability ---

func ServiceUnavailable(service string) *AppError {
	return New(ErrCodeServiceUnavailable, fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		http.StatusServiceUnavailable).WithDetail("service", service)
}

func ConnectionFailed(service string) *AppError {
	return New(ErrCodeConnectionFailed, fmt.Sprintf("Unable to connect to %s.", service),
		http.StatusServiceUnavailable).WithDetail("service", service)
}

func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, "The request took too long. Please try again.",
		http.StatusGatewayTimeout).WithDetail("operation", operation)
}

// BadGateway reports a failed upstream call made by the gateway proxy.
func BadGateway(target string, cause error) *AppError {
	return New(ErrCodeBadGateway, "The backend could not be reached.", http.StatusBadGateway).
		WithDetail("target", target).WithCause(cause)
}

// --- Resources and input ---

func NotFound(resource, id string) *AppError {
	e := New(ErrCodeNotFound, fmt.Sprintf("The requested %s was not found.", resource), http.StatusNotFound).
		WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

func Conflict(reason string) *AppError {
	return New(ErrCodeConflict, reason, http.StatusConflict)
}

func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, fmt.Sprintf("Invalid input: %s", reason), http.StatusBadRequest)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func MissingField(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("Missing required field: %s", field), http.StatusBadRequest).
		WithDetail("field", field)
}

func InvalidFormat(field, expectedFormat string) *AppError {
	return New(ErrCodeInvalidFormat, fmt.Sprintf("Invalid format for %s. Expected: %s", field, expectedFormat),
		http.StatusBadRequest).WithDetails(map[string]any{"field": field, "expected_format": expectedFormat})
}

// --- Auth ---

func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return New(ErrCodeUnauthorized, reason, http.StatusUnauthorized)
}

func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return New(ErrCodeForbidden, reason, http.StatusForbidden)
}

func InvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "Invalid authentication token. Please log in again.", http.StatusUnauthorized)
}

// DemoModeDisabled wraps a login failure that demo mode would otherwise have hidden.
func DemoModeDisabled(cause error) *AppError {
	return New(ErrCodeDemoModeDisabled, "Login failed and demo mode is disabled.", http.StatusUnauthorized).
		WithCause(cause)
}

// --- Console domain ---

// ModuleNotFound is returned by the module registry for unknown names.
func ModuleNotFound(name string) *AppError {
	return New(ErrCodeModuleNotFound, fmt.Sprintf("Module %q is not registered.", name), http.StatusNotFound).
		WithDetail("module", name)
}

// CycleDetected reports an edge that would make the pipeline graph cyclic.
func CycleDetected(from, to string) *AppError {
	return New(ErrCodeCycleDetected, fmt.Sprintf("Connecting %s to %s would create a cycle.", from, to),
		http.StatusUnprocessableEntity).WithDetails(map[string]any{"from": from, "to": to})
}

// UnknownNode reports a reference to a node id that is not in the graph.
func UnknownNode(id string) *AppError {
	return New(ErrCodeUnknownNode, fmt.Sprintf("Node %q does not exist.", id), http.StatusUnprocessableEntity).
		WithDetail("node_id", id)
}

// Envelope reports a backend response whose code field is non-zero.
func Envelope(code int, message string) *AppError {
	if message == "" {
		message = fmt.Sprintf("backend returned code %d", code)
	}
	return New(ErrCodeEnvelope, message, http.StatusBadGateway).WithDetail("code", code)
}

// --- Internal ---

func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.", http.StatusInternalServerError).WithCause(cause)
}

func ExternalServiceError(service string, cause error) *AppError {
	return New(ErrCodeExternalService, fmt.Sprintf("The %s service encountered an error.", service),
		http.StatusBadGateway).WithDetail("service", service).WithCause(cause)
}
