package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable).
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeBadGateway         ErrorCode = "BAD_GATEWAY"
)

// Resource and input errors.
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Authentication and authorization errors.
const (
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrCodeDemoModeDisabled ErrorCode = "DEMO_MODE_DISABLED"
)

// Console domain errors.
const (
	// ErrCodeModuleNotFound is returned when mounting an unregistered module.
	ErrCodeModuleNotFound ErrorCode = "MODULE_NOT_FOUND"
	// ErrCodeCycleDetected is returned when an edge would close a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
	// ErrCodeUnknownNode is returned when an edge or update names a missing node.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"
	// ErrCodeEnvelope is returned when a backend envelope carries a non-zero code.
	ErrCodeEnvelope ErrorCode = "ENVELOPE_ERROR"
)

// Internal errors.
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeBadGateway:         true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
