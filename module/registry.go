package module

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
)

// DefaultRootID is the container used when Mount gets an empty root id.
const DefaultRootID = "app-root"

const idPrefix = "module."

// Registry maps module names to modules. Names resolve with or without the
// "module." prefix.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	log     *logger.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
		log:     logger.Get("module"),
	}
}

// Name strips the "module." prefix from an id.
func Name(id string) string {
	return strings.TrimPrefix(id, idPrefix)
}

// Register adds m under its short name.
func (r *Registry) Register(m Module) error {
	name := Name(m.ID())
	if name == "" {
		return errors.InvalidInput("id", "module id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return errors.Conflict(fmt.Sprintf("module %s already registered", name))
	}
	r.modules[name] = m
	return nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (r *Registry) MustRegister(m Module) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Get returns the module for name or "module.name".
func (r *Registry) Get(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[Name(name)]
	if !ok {
		return nil, errors.ModuleNotFound(name)
	}
	return m, nil
}

// List returns all modules sorted by name.
func (r *Registry) List() []Module {
	r.mu.RLock()
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return Name(out[i].ID()) < Name(out[j].ID()) })
	return out
}

// Mounted is a module rendered into a root.
type Mounted struct {
	Module     Module
	Root       *Root
	Disposable Disposable
}

// Dispose releases the mount and clears the root.
func (m *Mounted) Dispose() error {
	defer m.Root.Clear()
	if m.Disposable == nil {
		return nil
	}
	return m.Disposable.Dispose()
}

// Mount renders the named module into a fresh root. rootID defaults to
// DefaultRootID.
func (r *Registry) Mount(name, rootID string, opts Options) (*Mounted, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if rootID == "" {
		rootID = DefaultRootID
	}
	root := NewRoot(rootID)
	d, err := m.Mount(root, opts)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", Name(m.ID()), err)
	}
	return &Mounted{Module: m, Root: root, Disposable: d}, nil
}

var placeholderTmpl = template.Must(template.New("placeholder").Parse(
	`<section class="card"><h2>{{.Title}}</h2>` +
		`<a class="btn" role="button" href="{{.Href}}">打开{{.Title}}</a></section>`))

// MountOrPlaceholder mounts the module, or on any failure renders a card with
// a single button opening the module's standalone page. The returned root is
// never empty; the mount error is only logged.
func (r *Registry) MountOrPlaceholder(name, rootID string, opts Options) *Mounted {
	mounted, err := r.Mount(name, rootID, opts)
	if err == nil && !mounted.Root.Empty() {
		return mounted
	}
	if err == nil {
		_ = mounted.Dispose()
	}
	if rootID == "" {
		rootID = DefaultRootID
	}

	title := Name(name)
	if m, getErr := r.Get(name); getErr == nil {
		title = m.Title()
	}
	fields := logger.Fields(logger.FieldModule, name, "root", rootID)
	if err != nil {
		fields[logger.FieldError] = err.Error()
	}
	r.log.Warn("module mount failed, rendering placeholder", fields)

	root := NewRoot(rootID)
	root.Write(placeholder(title, PagePath(name)))
	return &Mounted{Root: root}
}

func placeholder(title, href string) template.HTML {
	var sb strings.Builder
	if err := placeholderTmpl.Execute(&sb, map[string]string{"Title": title, "Href": href}); err != nil {
		return template.HTML(`<section class="card">` + template.HTMLEscapeString(title) + `</section>`)
	}
	return template.HTML(sb.String())
}

// PagePath is the standalone page of a module.
func PagePath(name string) string {
	return "/pages/" + Name(name) + ".html"
}
