package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_RetryableDetection(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeServiceUnavailable, true},
		{ErrCodeBadGateway, true},
		{ErrCodeNotFound, false},
		{ErrCodeCycleDetected, false},
		{ErrCodeEnvelope, false},
		{ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x", http.StatusTeapot).Retryable; got != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestNotFound_Details(t *testing.T) {
	err := NotFound("task", "t1")
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
	if err.Details["resource"] != "task" || err.Details["id"] != "t1" {
		t.Errorf("unexpected details %v", err.Details)
	}
	if _, ok := NotFound("task", "").Details["id"]; ok {
		t.Error("empty id should not be recorded")
	}
}

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"module", ModuleNotFound("crawler"), ErrCodeModuleNotFound, http.StatusNotFound},
		{"cycle", CycleDetected("a", "b"), ErrCodeCycleDetected, http.StatusUnprocessableEntity},
		{"unknown node", UnknownNode("n1"), ErrCodeUnknownNode, http.StatusUnprocessableEntity},
		{"envelope", Envelope(5, ""), ErrCodeEnvelope, http.StatusBadGateway},
		{"demo disabled", DemoModeDisabled(fmt.Errorf("refused")), ErrCodeDemoModeDisabled, http.StatusUnauthorized},
		{"bad gateway", BadGateway("http://x", nil), ErrCodeBadGateway, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.status)
			}
		})
	}
}

func TestEnvelope_DefaultMessage(t *testing.T) {
	err := Envelope(42, "")
	if !strings.Contains(err.Message, "42") {
		t.Errorf("message should mention the code, got %q", err.Message)
	}
	if err.Details["code"] != 42 {
		t.Errorf("details code = %v", err.Details["code"])
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := CycleDetected("a", "b")
	if !strings.HasPrefix(err.Error(), "CYCLE_DETECTED: ") {
		t.Errorf("Error() = %q", err.Error())
	}
	cause := fmt.Errorf("dial tcp: refused")
	wrapped := ConnectionFailed("backend").WithCause(cause)
	if !strings.Contains(wrapped.Error(), "refused") {
		t.Errorf("Error() should include cause, got %q", wrapped.Error())
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("connect: %w", CycleDetected("x", "y"))
	if !stderrors.Is(err, CycleDetected("", "")) {
		t.Error("expected errors.Is to match by code")
	}
	if stderrors.Is(err, UnknownNode("x")) {
		t.Error("different codes must not match")
	}
}

func TestToResponse(t *testing.T) {
	resp := InvalidInput("script", "must not be empty").ToResponse()
	if resp.ErrorCode != ErrCodeInvalidInput || resp.Code != http.StatusBadRequest {
		t.Errorf("code = %d %s", resp.Code, resp.ErrorCode)
	}
	if resp.Details["field"] != "script" {
		t.Errorf("details = %v", resp.Details)
	}
	if got := (&AppError{Message: "bare"}).ToResponse().Code; got != http.StatusInternalServerError {
		t.Errorf("unset status should answer 500, got %d", got)
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("mount: %w", ModuleNotFound("nope"))
	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.Code != ErrCodeModuleNotFound {
		t.Fatalf("AsAppError = %v, %v", appErr, ok)
	}
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("plain error is not an AppError")
	}
}
