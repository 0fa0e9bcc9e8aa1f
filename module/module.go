package module

import (
	"context"
	"html/template"
	"strings"
	"sync"
)

// Route is one backend endpoint a module calls.
type Route struct {
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
}

// Root is the render target a module mounts into. It collects HTML the way a
// DOM container collects children.
type Root struct {
	ID string

	mu   sync.Mutex
	html strings.Builder
}

// NewRoot returns an empty root with the given id.
func NewRoot(id string) *Root {
	return &Root{ID: id}
}

// Write appends already-escaped markup.
func (r *Root) Write(markup template.HTML) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.html.WriteString(string(markup))
}

// Clear drops everything mounted so far.
func (r *Root) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.html.Reset()
}

// HTML returns the current content.
func (r *Root) HTML() template.HTML {
	r.mu.Lock()
	defer r.mu.Unlock()
	return template.HTML(r.html.String())
}

// Empty reports whether nothing has been mounted.
func (r *Root) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html.Len() == 0
}

// Options are passed through to Mount.
type Options struct {
	Context context.Context
	// Role of the viewer; modules may hide routes the role cannot use.
	Role string
	// Params is free-form per-module input.
	Params map[string]any
}

func (o Options) context() context.Context {
	if o.Context != nil {
		return o.Context
	}
	return context.Background()
}

// Disposable releases whatever a mount acquired.
type Disposable interface {
	Dispose() error
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func() error

func (f DisposeFunc) Dispose() error {
	if f == nil {
		return nil
	}
	return f()
}

// Module is a page component that can render itself into a Root.
type Module interface {
	ID() string
	Title() string
	Routes() map[string]Route
	Mount(root *Root, opts Options) (Disposable, error)
}
