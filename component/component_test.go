package component

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (f *fakeComponent) Name() string { return f.name }
func (f *fakeComponent) Start(context.Context) error {
	if f.events != nil {
		*f.events = append(*f.events, "start:"+f.name)
	}
	return f.startErr
}
func (f *fakeComponent) Stop(context.Context) error {
	if f.events != nil {
		*f.events = append(*f.events, "stop:"+f.name)
	}
	return f.stopErr
}
func (f *fakeComponent) Health(context.Context) Health { return f.health }

type describedComponent struct {
	fakeComponent
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "server", Details: "127.0.0.1:8080", Port: 8080}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeComponent{name: "gateway"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&fakeComponent{name: "gateway"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Get("gateway") == nil || r.Get("missing") != nil {
		t.Error("Get returned unexpected result")
	}
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry()
	for _, name := range []string{"redis", "sse-hub", "gateway"} {
		_ = r.Register(&fakeComponent{name: name, events: &events})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	want := []string{"start:redis", "start:sse-hub", "start:gateway", "stop:gateway", "stop:sse-hub", "stop:redis"}
	if !equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestStartFailureStopsStarted(t *testing.T) {
	var events []string
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "redis", events: &events})
	_ = r.Register(&fakeComponent{name: "gateway", events: &events, startErr: errors.New("address in use")})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start:redis", "start:gateway", "stop:redis"}
	if !equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "a", stopErr: errors.New("a failed")})
	_ = r.Register(&fakeComponent{name: "b", stopErr: errors.New("b failed")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if msg := err.Error(); msg != "stop b: b failed\nstop a: a failed" {
		t.Errorf("unexpected joined error %q", msg)
	}
}

func TestHealthAllAndSummary(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "redis", health: Health{Name: "redis", Status: StatusUnhealthy}})
	_ = r.Register(&describedComponent{fakeComponent{name: "gateway", health: Health{Name: "gateway", Status: StatusHealthy}}})

	hs := r.HealthAll(context.Background())
	if len(hs) != 2 || hs[0].Status != StatusUnhealthy || hs[1].Status != StatusHealthy {
		t.Errorf("unexpected health %+v", hs)
	}

	sum := r.Summary()
	if len(sum) != 1 || sum[0].Name != "gateway" || sum[0].Port != 8080 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var events []string
	r := NewRegistry()
	_ = r.Register(&fakeComponent{name: "mock", events: &events})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !equal(events, []string{"start:mock", "stop:mock"}) {
		t.Errorf("events = %v", events)
	}
}
