package module

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/httpclient"
)

// Actions dispatches a module's named routes through the HTTP client.
type Actions struct {
	client *httpclient.Client
	module Module
}

// NewActions binds m's routes to client.
func NewActions(client *httpclient.Client, m Module) *Actions {
	return &Actions{client: client, module: m}
}

// Call invokes the route named action. Path parameters (":id") are taken
// from params; for GET the remaining params become the query string, for
// other methods body is sent as JSON.
func (a *Actions) Call(ctx context.Context, action string, params map[string]string, body any) (*httpclient.Envelope, error) {
	route, ok := a.module.Routes()[action]
	if !ok {
		return nil, errors.NotFound("route", Name(a.module.ID())+"."+action)
	}
	path, rest, err := ResolvePath(route.Path, params)
	if err != nil {
		return nil, err
	}

	req := httpclient.Request{Method: route.Method, Path: path}
	if route.Method == http.MethodGet || route.Method == http.MethodDelete {
		req.Query = rest
	} else {
		req.Body = body
	}
	return a.client.Do(ctx, req)
}

// ResolvePath substitutes ":name" segments from params and returns the
// params it did not use.
func ResolvePath(pattern string, params map[string]string) (string, map[string]string, error) {
	used := make(map[string]bool)
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		name, isParam := strings.CutPrefix(seg, ":")
		if !isParam {
			continue
		}
		v, ok := params[name]
		if !ok || v == "" {
			return "", nil, errors.MissingField(name)
		}
		segments[i] = url.PathEscape(v)
		used[name] = true
	}

	var rest map[string]string
	for k, v := range params {
		if used[k] {
			continue
		}
		if rest == nil {
			rest = make(map[string]string)
		}
		rest[k] = v
	}
	return strings.Join(segments, "/"), rest, nil
}

// Call is a shortcut for NewActions(client, m).Call with the module looked
// up in r.
func (r *Registry) Call(ctx context.Context, client *httpclient.Client, name, action string, params map[string]string, body any) (*httpclient.Envelope, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	env, err := NewActions(client, m).Call(ctx, action, params, body)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", Name(name), action, err)
	}
	return env, nil
}
