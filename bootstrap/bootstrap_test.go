package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/component"
	"github.com/ylai/autoplatform/config"
	"github.com/ylai/autoplatform/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.started = true
	m.record("start:" + m.name)
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.stopped = true
	m.record("stop:" + m.name)
	return m.stopErr
}
func (m *mockComponent) Health(context.Context) component.Health { return m.health }

func (m *mockComponent) record(e string) {
	if m.events != nil {
		*m.events = append(*m.events, e)
	}
}

type servingComponent struct {
	mockComponent
}

func (s *servingComponent) Describe() component.Description {
	return component.Description{Name: "Gateway", Type: "http", Details: "127.0.0.1:5173", Port: 5173}
}

func (s *servingComponent) Routes() []component.Route {
	return []component.Route{{Method: "GET", Path: "/health", Handler: "gateway.health"}}
}

func healthy(name string) component.Health {
	return component.Health{Name: name, Status: component.StatusHealthy}
}

func newTestApp(t *testing.T, opts ...Option) (*App[*testConfig], *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "ylai-test", Version: "1.0.0"}}
	opts = append([]Option{WithLogger(logger.NewNop()), WithOutput(&out), WithoutSignals()}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app, &out
}

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Name != "ylai-test" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %q %q", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got environment %q", app.Cfg.Environment)
	}
	if app.Components == nil || app.Summary == nil || app.Logger == nil {
		t.Error("expected registry, summary and logger")
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default 15s, got %v", app.gracefulTimeout)
	}
}

func TestNewAppInitializesLogger(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "ylai-test"}}
	app, err := NewApp(cfg, WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Logger == nil || app.Logger.Service() != "ylai-test" {
		t.Errorf("expected logger for ylai-test")
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "ylai-test", Environment: "qa"}}
	if _, err := NewApp(cfg, WithLogger(logger.NewNop())); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app, _ := newTestApp(t, WithGracefulTimeout(5*time.Second))
	if app.gracefulTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", app.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app, _ := newTestApp(t)
	if err := app.RegisterComponent(&mockComponent{name: "gateway"}); err != nil {
		t.Fatalf("RegisterComponent failed: %v", err)
	}
	if app.Components.Get("gateway") == nil {
		t.Error("expected component to be registered")
	}
	if err := app.RegisterComponent(&mockComponent{name: "gateway"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		health  []component.Health
		wantErr bool
	}{
		{"empty", nil, false},
		{"all healthy", []component.Health{healthy("redis"), healthy("gateway")}, false},
		{"unhealthy", []component.Health{healthy("gateway"), {Name: "redis", Status: component.StatusUnhealthy, Message: "timeout"}}, true},
		{"degraded", []component.Health{{Name: "backend", Status: component.StatusDegraded, Message: "slow"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			for _, h := range tt.health {
				_ = app.RegisterComponent(&mockComponent{name: h.Name, health: h})
			}
			err := app.ReadyCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadyCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHookError(t *testing.T) {
	secondCalled := false
	hooks := []Hook{
		func(context.Context) error { return fmt.Errorf("fail") },
		func(context.Context) error { secondCalled = true; return nil },
	}
	if err := runHooks(context.Background(), hooks); err == nil {
		t.Error("expected error from failing hook")
	}
	if secondCalled {
		t.Error("expected second hook not to run after the first failed")
	}
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	app, _ := newTestApp(t)
	var order []string
	_ = app.RegisterComponent(&mockComponent{name: "storage", health: healthy("storage"), events: &order})
	_ = app.RegisterComponent(&mockComponent{name: "mockbackend", health: healthy("mockbackend"), events: &order})
	app.OnStart(func(context.Context) error { order = append(order, "onStart"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		if a.Cfg.Name != "ylai-test" {
			t.Errorf("expected typed config in configure, got %q", a.Cfg.Name)
		}
		order = append(order, "configure")
		return nil
	})
	app.OnReady(func(context.Context) error { order = append(order, "onReady"); return nil })
	app.OnStop(func(context.Context) error { order = append(order, "onStop"); return nil })

	err := app.RunTask(context.Background(), func(context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	want := []string{
		"start:storage", "start:mockbackend", "onStart", "configure", "onReady",
		"task", "onStop", "stop:mockbackend", "stop:storage",
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("lifecycle order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTaskErrors(t *testing.T) {
	fail := func(context.Context) error { return fmt.Errorf("boom") }
	tests := []struct {
		name    string
		setup   func(app *App[*testConfig], c *mockComponent)
		stopped bool
	}{
		{"start hook", func(a *App[*testConfig], _ *mockComponent) { a.OnStart(fail) }, true},
		{"configure", func(a *App[*testConfig], _ *mockComponent) {
			a.OnConfigure(func(context.Context, *App[*testConfig]) error { return fmt.Errorf("boom") })
		}, true},
		{"ready hook", func(a *App[*testConfig], _ *mockComponent) { a.OnReady(fail) }, true},
		{"stop hook", func(a *App[*testConfig], _ *mockComponent) { a.OnStop(fail) }, true},
		{"component start", func(_ *App[*testConfig], c *mockComponent) { c.startErr = fmt.Errorf("address in use") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			c := &mockComponent{name: "gateway", health: healthy("gateway")}
			tt.setup(app, c)
			_ = app.RegisterComponent(c)

			taskRan := false
			err := app.RunTask(context.Background(), func(context.Context) error {
				taskRan = true
				return nil
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.name != "stop hook" && taskRan {
				t.Error("task must not run after a failed startup")
			}
			if c.stopped != tt.stopped {
				t.Errorf("stopped = %v, want %v", c.stopped, tt.stopped)
			}
		})
	}
}

func TestRunTaskReturnsTaskError(t *testing.T) {
	app, _ := newTestApp(t)
	err := app.RunTask(context.Background(), func(context.Context) error {
		return fmt.Errorf("task error")
	})
	if err == nil || err.Error() != "task error" {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if err == nil {
		t.Error("expected error from canceled task")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t)
	c := &mockComponent{name: "gateway", health: healthy("gateway")}
	_ = app.RegisterComponent(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !c.started || !c.stopped {
		t.Errorf("started=%v stopped=%v", c.started, c.stopped)
	}
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	app.signals = true
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if sig := app.WaitForSignal(ctx); sig != nil {
		t.Errorf("expected nil signal for context cancellation, got %v", sig)
	}
}

func TestDisplaySummary(t *testing.T) {
	app, out := newTestApp(t)
	_ = app.RegisterComponent(&servingComponent{mockComponent{name: "gateway", health: healthy("gateway")}})
	_ = app.RegisterComponent(&mockComponent{name: "redis", health: component.Health{
		Name: "redis", Status: component.StatusUnhealthy, Message: "connection refused",
	}})
	app.Summary.TrackClient("backend", "http://127.0.0.1:8001", "http")
	app.Summary.Note("open http://127.0.0.1:5173/")

	app.DisplaySummary(context.Background())

	got := out.String()
	for _, want := range []string{
		"ylai-test 1.0.0 started in",
		"Gateway [http]: 127.0.0.1:5173\n",
		"GET     /health -> gateway.health",
		"backend -> http://127.0.0.1:8001 [http]",
		"❌ redis: unhealthy (connection refused)",
		"Some components have issues (1/2 healthy)",
		"open http://127.0.0.1:5173/",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestDisplaySummaryEmpty(t *testing.T) {
	var out bytes.Buffer
	NewSummary("ylai", "").Display(context.Background(), &out, component.NewRegistry())
	if !strings.Contains(out.String(), "ylai dev started") || !strings.Contains(out.String(), "No components registered") {
		t.Errorf("unexpected summary:\n%s", out.String())
	}
}
