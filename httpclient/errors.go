package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies client failures.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindConnection
	KindDNS
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindClient
	KindServer
	// KindEnvelope is a 2xx response whose envelope code is non-zero.
	KindEnvelope
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindDNS:
		return "dns"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindEnvelope:
		return "envelope"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// Error is returned for every transport, HTTP or envelope failure.
type Error struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Kind       ErrorKind
	Message    string
	Retryable  bool
	// Code is the envelope code for KindEnvelope errors.
	Code int
	// Body is the raw response body, when there was one.
	Body []byte
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindEnvelope:
		return fmt.Sprintf("httpclient: envelope code %d: %s", e.Code, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("httpclient: %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Response decodes the raw body into a generic map. It returns nil when the
// body is not a JSON object.
func (e *Error) Response() map[string]any {
	var m map[string]any
	if json.Unmarshal(e.Body, &m) != nil {
		return nil
	}
	return m
}

func newTransportError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Retryable: true, Err: err}
}

func newEnvelopeError(code int, message string, body []byte) *Error {
	if message == "" {
		message = "API Error"
	}
	return &Error{StatusCode: http.StatusOK, Kind: KindEnvelope, Code: code, Message: message, Body: body}
}

// classifyStatus maps a non-2xx status to an *Error. 5xx is retryable,
// every 4xx is not.
func classifyStatus(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: body, Message: bodyMessage(body, status)}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status >= 500:
		e.Kind = KindServer
		e.Retryable = true
	default:
		e.Kind = KindClient
	}
	return e
}

// bodyMessage extracts the message of a JSON error body. It understands
// {message}, {error: "..."} and the gateway's {error: {message}}, falling
// back to "HTTP <status>".
func bodyMessage(body []byte, status int) string {
	var m struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &m) == nil {
		if m.Message != "" {
			return m.Message
		}
		var s string
		if json.Unmarshal(m.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(m.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func is(err error, kind ErrorKind) bool {
	k, ok := kindOf(err)
	return ok && k == kind
}

func IsTimeout(err error) bool      { return is(err, KindTimeout) }
func IsConnection(err error) bool   { return is(err, KindConnection) || is(err, KindDNS) }
func IsUnauthorized(err error) bool { return is(err, KindUnauthorized) }
func IsNotFound(err error) bool     { return is(err, KindNotFound) }
func IsServerError(err error) bool  { return is(err, KindServer) }
func IsEnvelope(err error) bool     { return is(err, KindEnvelope) }

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
