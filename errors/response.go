package errors

import (
	stderrors "errors"
	"net/http"
)

// Response is the body of a failed backend call. Code repeats the HTTP
// status so console code that only checks code != 0 still sees a failure;
// ErrorCode is the machine-readable kind.
type Response struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	ErrorCode ErrorCode      `json:"error_code"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Status is the HTTP status to answer with; 500 when none was set.
func (e *AppError) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// ToResponse builds the envelope written for e.
func (e *AppError) ToResponse() Response {
	return Response{
		Code:      e.Status(),
		Message:   e.Message,
		ErrorCode: e.Code,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
}

// IsAppError reports whether err wraps an *AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError unwraps the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
