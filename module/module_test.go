package module

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/httpclient"
)

type failingModule struct{ id string }

func (f failingModule) ID() string               { return f.id }
func (f failingModule) Title() string            { return "Broken" }
func (f failingModule) Routes() map[string]Route { return nil }
func (f failingModule) Mount(*Root, Options) (Disposable, error) {
	return nil, stderrors.New("boom")
}

func TestCatalogCoversSections(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{
		"ai", "anti", "auto", "backend", "challenge", "crack", "crawler", "docs", "enum",
		"fastapi", "limit", "logs", "params", "rbac", "recognize", "scheduler", "security",
		"system", "train", "workflow", "xparse",
		"index", "api-doc", "run", "monitor", "ai-demo", "visual_pipeline",
	} {
		m, err := reg.Get(name)
		if err != nil {
			t.Errorf("Get(%q): %v", name, err)
			continue
		}
		if len(m.Routes()) == 0 {
			t.Errorf("%s has no routes", name)
		}
	}
}

func TestGetResolvesPrefixedNames(t *testing.T) {
	reg := DefaultRegistry()
	a, err := reg.Get("crawler")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := reg.Get("module.crawler")
	if err != nil {
		t.Fatalf("Get prefixed: %v", err)
	}
	if a != b {
		t.Error("expected the same module for both names")
	}
	if a.ID() != "module.crawler" || a.Title() != "采集任务" {
		t.Errorf("unexpected module %s %s", a.ID(), a.Title())
	}
	want := Route{Method: http.MethodPost, Path: "/api/crawler/tasks/:id/start"}
	if diff := cmp.Diff(want, a.Routes()["start"]); diff != "" {
		t.Errorf("start route mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownModule(t *testing.T) {
	reg := DefaultRegistry()
	_, err := reg.Get("nope")
	if !stderrors.Is(err, errors.ModuleNotFound("")) {
		t.Fatalf("expected MODULE_NOT_FOUND, got %v", err)
	}
	if _, err := reg.Mount("module.nope", "", Options{}); !stderrors.Is(err, errors.ModuleNotFound("")) {
		t.Fatalf("Mount: expected MODULE_NOT_FOUND, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewRouteModule("x", "X")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(NewRouteModule("module.x", "X again")); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestListIsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, n := range []string{"c", "a", "b"} {
		reg.MustRegister(NewRouteModule(n, n))
	}
	var got []string
	for _, m := range reg.List() {
		got = append(got, Name(m.ID()))
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMountRendersRouteTable(t *testing.T) {
	reg := DefaultRegistry()
	mounted, err := reg.Mount("backend", "", Options{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if mounted.Root.ID != DefaultRootID {
		t.Errorf("root id = %q, want %q", mounted.Root.ID, DefaultRootID)
	}
	html := string(mounted.Root.HTML())
	for _, want := range []string{"后端控制", "/api/backend/toggle", "/api/backend/status", "/api/backend/logs"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
	if strings.Index(html, "toggle") > strings.Index(html, "logs") {
		t.Error("routes not rendered in declaration order")
	}

	if err := mounted.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if !mounted.Root.Empty() {
		t.Error("root not cleared after dispose")
	}
}

func TestMountOrPlaceholder(t *testing.T) {
	reg := DefaultRegistry()
	reg.MustRegister(failingModule{id: "module.broken"})

	tests := []struct {
		name     string
		module   string
		wantHref string
	}{
		{"unknown module", "ghost", "/pages/ghost.html"},
		{"mount error", "broken", "/pages/broken.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := reg.MountOrPlaceholder(tt.module, "ylai-root", Options{})
			if m.Root.ID != "ylai-root" {
				t.Errorf("root id = %q", m.Root.ID)
			}
			html := string(m.Root.HTML())
			if strings.Count(html, `class="btn"`) != 1 {
				t.Errorf("expected a single button, got %s", html)
			}
			if !strings.Contains(html, tt.wantHref) {
				t.Errorf("expected link %s in %s", tt.wantHref, html)
			}
		})
	}

	m := reg.MountOrPlaceholder("crawler", "", Options{})
	if !strings.Contains(string(m.Root.HTML()), "/api/crawler/tasks") {
		t.Error("a working module should render normally")
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		params   map[string]string
		wantPath string
		wantRest map[string]string
		wantErr  bool
	}{
		{"no params", "/api/backend/status", nil, "/api/backend/status", nil, false},
		{"id", "/api/train/run/:id", map[string]string{"id": "t1"}, "/api/train/run/t1", nil, false},
		{"middle", "/api/crack/tasks/:id/start", map[string]string{"id": "a b", "x": "1"},
			"/api/crack/tasks/a%20b/start", map[string]string{"x": "1"}, false},
		{"missing", "/api/xparse/status/:id", map[string]string{}, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, rest, err := ResolvePath(tt.pattern, tt.params)
			if tt.wantErr {
				if !stderrors.Is(err, errors.MissingField("")) {
					t.Fatalf("expected MISSING_FIELD, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if diff := cmp.Diff(tt.wantRest, rest); diff != "" {
				t.Errorf("rest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestActionsCall(t *testing.T) {
	type seen struct{ method, path, query, body string }
	var got []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = append(got, seen{r.Method, r.URL.Path, r.URL.RawQuery, string(b)})
		_, _ = io.WriteString(w, `{"code":0,"data":{"ok":true}}`)
	}))
	defer srv.Close()

	client, err := httpclient.New(httpclient.Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reg := DefaultRegistry()
	ctx := context.Background()

	if _, err := reg.Call(ctx, client, "challenge", "status", map[string]string{"id": "c9", "verbose": "1"}, nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := reg.Call(ctx, client, "module.crawler", "create", nil, map[string]string{"url": "https://example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	want := []seen{
		{http.MethodGet, "/api/challenge/status/c9", "verbose=1", ""},
		{http.MethodPost, "/api/crawler/tasks", "", `{"url":"https://example.com"}`},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(seen{})); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}

	if _, err := reg.Call(ctx, client, "crawler", "explode", nil, nil); !stderrors.Is(err, errors.NotFound("", "")) {
		t.Errorf("expected NOT_FOUND for unknown action, got %v", err)
	}
}

func TestParseCatalogRejectsBadRoutes(t *testing.T) {
	tests := map[string]string{
		"bad method": "- {name: x, title: X, routes: [{name: a, method: FETCH, path: /a}]}",
		"relative":   "- {name: x, title: X, routes: [{name: a, method: GET, path: a}]}",
		"no title":   "- {name: x, routes: []}",
		"duplicate":  "- {name: x, title: X}\n- {name: x, title: Y}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
