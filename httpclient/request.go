package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ylai/autoplatform/httpclient/sse"
)

// Request describes one API call.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	// Body is JSON-encoded unless it is an io.Reader, []byte or string.
	// An io.Reader is read once and replayed on every retry.
	Body    any
	noRetry bool
	noAuth  bool
}

// RequestOption customizes a Request built by the verb helpers.
type RequestOption func(*Request)

func WithQuery(key, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = map[string]string{}
		}
		r.Query[key] = value
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = map[string]string{}
		}
		r.Headers[key] = value
	}
}

// WithoutRetry sends the request once; used for fire-and-forget reports.
func WithoutRetry() RequestOption {
	return func(r *Request) { r.noRetry = true }
}

// WithoutAuth omits the bearer token and skips the 401 token reset, for
// calls such as login that run before a session exists.
func WithoutAuth() RequestOption {
	return func(r *Request) { r.noAuth = true }
}

// Envelope is a decoded backend response. Backends answer either
// {"code": 0, "data": ...} or a bare document; for the latter Code is 0 and
// Data holds the whole body.
type Envelope struct {
	StatusCode int
	Code       int
	Message    string
	Data       json.RawMessage
	// Raw is the complete response body.
	Raw     []byte
	Headers http.Header
	// Enveloped is true when the body carried a code field.
	Enveloped bool
}

// Text returns the raw body as a string.
func (e *Envelope) Text() string { return string(e.Raw) }

// Decode unmarshals the envelope data into T.
func Decode[T any](env *Envelope) (T, error) {
	var out T
	if env == nil || len(env.Data) == 0 {
		return out, fmt.Errorf("httpclient: empty response data")
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, &Error{StatusCode: env.StatusCode, Kind: KindInvalidRequest,
			Message: "decode response: " + err.Error(), Body: env.Raw, Err: err}
	}
	return out, nil
}

// DecodeRaw unmarshals the complete body into T.
func DecodeRaw[T any](env *Envelope) (T, error) {
	var out T
	if env == nil {
		return out, fmt.Errorf("httpclient: nil envelope")
	}
	if err := json.Unmarshal(env.Raw, &out); err != nil {
		return out, &Error{StatusCode: env.StatusCode, Kind: KindInvalidRequest,
			Message: "decode response: " + err.Error(), Body: env.Raw, Err: err}
	}
	return out, nil
}

// parseEnvelope applies the {code, data} convention to a 2xx body.
func parseEnvelope(status int, headers http.Header, body []byte) (*Envelope, error) {
	env := &Envelope{StatusCode: status, Raw: body, Headers: headers}

	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		if json.Valid(body) {
			env.Data = body
		}
		return env, nil
	}

	rawCode, ok := fields["code"]
	if !ok {
		env.Data = body
		return env, nil
	}

	var code int
	if err := json.Unmarshal(rawCode, &code); err != nil {
		// A non-numeric code can never be the success value 0.
		code = -1
	}
	var msg string
	if m, ok := fields["message"]; ok {
		_ = json.Unmarshal(m, &msg)
	}
	env.Code = code
	env.Message = msg
	env.Enveloped = true
	if code != 0 {
		return nil, newEnvelopeError(code, msg, body)
	}
	env.Data = fields["data"]
	return env, nil
}

// StreamResponse is an open streaming response. Close it when done.
type StreamResponse struct {
	StatusCode int
	Headers    http.Header
	// SSE is set for text/event-stream responses, Body otherwise.
	SSE  sse.Reader
	Body io.ReadCloser
}

func (r *StreamResponse) Close() error {
	if r.SSE != nil {
		return r.SSE.Close()
	}
	if r.Body != nil {
		return r.Body.Close()
	}
	return nil
}
