package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/component"
	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	s := New(cfg, logger.NewNop())
	gin.SetMode(gin.TestMode)
	s.ApplyMiddleware()
	return s
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Host != "0.0.0.0" || cfg.Port != 8080 || cfg.WriteTimeout != 0 || cfg.MaxBodySize != "10MB" {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("port 70000 accepted")
	}
}

func TestRespondHelpers(t *testing.T) {
	s := newTestServer(t)
	s.Engine().GET("/ok", func(c *gin.Context) { RespondOK(c, gin.H{"n": 1}) })
	s.Engine().GET("/missing", func(c *gin.Context) { RespondWithError(c, errors.NotFound("module", "vision")) })
	s.Engine().GET("/plain", func(c *gin.Context) { RespondWithError(c, fmt.Errorf("boom")) })

	tests := []struct {
		path       string
		wantStatus int
		want       map[string]any
	}{
		{"/ok", http.StatusOK, map[string]any{"code": float64(0), "data": map[string]any{"n": float64(1)}}},
		{"/missing", http.StatusNotFound, map[string]any{
			"code":       float64(404),
			"message":    "The requested module was not found.",
			"error_code": "NOT_FOUND",
			"details":    map[string]any{"resource": "module", "id": "vision"},
		}},
		{"/plain", http.StatusInternalServerError, map[string]any{
			"code":       float64(500),
			"message":    "An unexpected error occurred.",
			"error_code": "INTERNAL_ERROR",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var got map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComponentLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.Engine().GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	s.Handle("/raw/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "raw")
	}))

	comp := NewComponent("gateway", s)
	ctx := context.Background()
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = comp.Stop(ctx) }()

	h := comp.Health(ctx)
	if h.Status != component.StatusHealthy || h.Message == "" {
		t.Errorf("health = %+v", h)
	}

	for path, want := range map[string]string{"/health": "ok", "/raw/x": "raw"} {
		resp, err := http.Get("http://" + s.Addr() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if string(body) != want {
			t.Errorf("GET %s = %q, want %q", path, body, want)
		}
	}
}

func TestComponentRoutesSorted(t *testing.T) {
	s := newTestServer(t)
	noop := func(*gin.Context) {}
	s.Engine().POST("/api/run", noop)
	s.Engine().DELETE("/api/modules", noop)
	s.Engine().GET("/api/modules", noop)
	s.Engine().GET("/api/health", noop)

	var got []string
	for _, r := range NewComponent("backend", s).Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	want := []string{"GET /api/health", "GET /api/modules", "DELETE /api/modules", "POST /api/run"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerName(t *testing.T) {
	tests := map[string]string{
		"github.com/ylai/autoplatform/mockbackend.(*Backend).login-fm": "Backend.login",
		"github.com/ylai/autoplatform/gateway.(*Gateway).health-fm":    "Gateway.health",
		"github.com/ylai/autoplatform/server.TestX.func1":              "TestX",
	}
	for in, want := range tests {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}
