package module

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ylai/autoplatform/validation"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogRoute struct {
	Name   string `yaml:"name" validate:"required"`
	Method string `yaml:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Path   string `yaml:"path" validate:"required,startswith=/"`
}

type catalogEntry struct {
	Name   string         `yaml:"name" validate:"required"`
	Title  string         `yaml:"title" validate:"required"`
	Page   string         `yaml:"page"`
	Routes []catalogRoute `yaml:"routes" validate:"dive"`
}

// RouteModule is a declarative module: a title plus an ordered route table.
// Mounting renders both.
type RouteModule struct {
	name   string
	title  string
	page   string
	order  []string
	routes map[string]Route
}

// NewRouteModule builds a module from ordered (name, route) pairs.
func NewRouteModule(name, title string, routes ...NamedRoute) *RouteModule {
	m := &RouteModule{name: Name(name), title: title, routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if _, dup := m.routes[r.Name]; !dup {
			m.order = append(m.order, r.Name)
		}
		m.routes[r.Name] = r.Route
	}
	return m
}

// NamedRoute pairs a route with its action name.
type NamedRoute struct {
	Name string
	Route
}

func (m *RouteModule) ID() string    { return idPrefix + m.name }
func (m *RouteModule) Title() string { return m.title }

// Page is the standalone page name, empty for modules that have none.
func (m *RouteModule) Page() string { return m.page }

// Routes returns a copy of the route table.
func (m *RouteModule) Routes() map[string]Route {
	out := make(map[string]Route, len(m.routes))
	for k, v := range m.routes {
		out[k] = v
	}
	return out
}

// Ordered returns the routes in declaration order.
func (m *RouteModule) Ordered() []NamedRoute {
	out := make([]NamedRoute, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, NamedRoute{Name: name, Route: m.routes[name]})
	}
	return out
}

var routeTableTmpl = template.Must(template.New("routes").Parse(
	`<section class="card module" id="module-{{.Name}}"><h2>{{.Title}}</h2>` +
		`<table class="routes"><thead><tr><th>action</th><th>method</th><th>path</th></tr></thead><tbody>` +
		`{{range .Routes}}<tr><td>{{.Name}}</td><td>{{.Method}}</td><td><code>{{.Path}}</code></td></tr>{{end}}` +
		`</tbody></table></section>`))

func (m *RouteModule) Mount(root *Root, _ Options) (Disposable, error) {
	var sb strings.Builder
	err := routeTableTmpl.Execute(&sb, map[string]any{
		"Name":   m.name,
		"Title":  m.title,
		"Routes": m.Ordered(),
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", m.name, err)
	}
	root.Write(template.HTML(sb.String()))
	return DisposeFunc(func() error {
		root.Clear()
		return nil
	}), nil
}

// ParseCatalog decodes a YAML list of modules. Route order is preserved.
func ParseCatalog(data []byte) ([]*RouteModule, error) {
	var entries []catalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]bool, len(entries))
	out := make([]*RouteModule, 0, len(entries))
	for i, e := range entries {
		if err := validation.Validate(e); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("catalog entry %d: duplicate module %s", i, e.Name)
		}
		seen[e.Name] = true

		routes := make([]NamedRoute, 0, len(e.Routes))
		for _, r := range e.Routes {
			routes = append(routes, NamedRoute{Name: r.Name, Route: Route{Method: r.Method, Path: r.Path}})
		}
		m := NewRouteModule(e.Name, e.Title, routes...)
		m.page = e.Page
		out = append(out, m)
	}
	return out, nil
}

// Catalog returns the built-in modules.
func Catalog() []*RouteModule {
	mods, err := ParseCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return mods
}

// DefaultRegistry returns a registry holding the built-in catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range Catalog() {
		r.MustRegister(m)
	}
	return r
}
