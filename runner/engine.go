package runner

import (
	"net/url"

	"github.com/ylai/autoplatform/validation"
)

// Engine selects the backend execution path.
type Engine string

const (
	EngineWS     Engine = "ws"
	EngineSimple Engine = "simple"
)

// ParseEngine accepts "ws" and "simple"; empty means ws.
func ParseEngine(s string) (Engine, error) {
	if s == "" {
		return EngineWS, nil
	}
	if err := validation.New().OneOf("engine", s, string(EngineWS), string(EngineSimple)).Validate(); err != nil {
		return "", err
	}
	return Engine(s), nil
}

// RunPath is the endpoint that accepts a run payload.
func (e Engine) RunPath() string {
	if e == EngineSimple {
		return "/api/pipeline/simple/run"
	}
	return "/api/pipeline/run"
}

// WSPath is the status stream of a task.
func (e Engine) WSPath(taskID string) string {
	if e == EngineSimple {
		return "/api/pipeline/simple/ws/" + url.PathEscape(taskID)
	}
	return "/ws/pipeline/" + url.PathEscape(taskID)
}
