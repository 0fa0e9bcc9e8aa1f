package server

import (
	"context"
	"sort"
	"strings"

	"github.com/ylai/autoplatform/component"
)

var (
	_ component.Component     = (*Component)(nil)
	_ component.Describable   = (*Component)(nil)
	_ component.RouteProvider = (*Component)(nil)
)

// Component runs a Server under the component registry.
type Component struct {
	server *Server
	name   string
}

// NewComponent wraps s; name identifies it in health and summaries.
func NewComponent(name string, s *Server) *Component {
	return &Component{server: s, name: name}
}

func (sc *Component) Name() string                    { return sc.name }
func (sc *Component) Start(ctx context.Context) error { return sc.server.Start(ctx) }
func (sc *Component) Stop(ctx context.Context) error  { return sc.server.Stop(ctx) }
func (sc *Component) Server() *Server                 { return sc.server }

func (sc *Component) Health(context.Context) component.Health {
	return component.Health{Name: sc.name, Status: component.StatusHealthy, Message: sc.server.Addr()}
}

func (sc *Component) Describe() component.Description {
	return component.Description{Name: sc.name, Type: "http", Details: sc.server.Addr(), Port: sc.server.config.Port}
}

// Routes lists the gin routes sorted by path, then method.
func (sc *Component) Routes() []component.Route {
	routes := sc.server.engine.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return methodOrder(routes[i].Method) < methodOrder(routes[j].Method)
	})
	out := make([]component.Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, component.Route{Method: r.Method, Path: r.Path, Handler: handlerName(r.Handler)})
	}
	return out
}

// handlerName shortens gin's handler path, e.g.
// "github.com/ylai/autoplatform/mockbackend.(*Backend).login-fm" to
// "Backend.login".
func handlerName(full string) string {
	name := strings.TrimSuffix(full, "-fm")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.NewReplacer("(*", "", ")", "").Replace(name)
	if _, rest, ok := strings.Cut(name, "."); ok && rest != "" {
		name = rest
	}
	if i := strings.Index(name, ".func"); i > 0 {
		name = name[:i]
	}
	return name
}

func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
