package dag

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
)

func graphOf(edges []Edge, ids ...string) *Graph {
	g := &Graph{Nodes: make(map[string]Node), Edges: edges}
	for _, id := range ids {
		g.Nodes[id] = Func(id, nil)
	}
	return g
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		edges []Edge
		want  [][]string
	}{
		{"linear", []string{"a", "b", "c"}, []Edge{{"a", "b"}, {"b", "c"}}, [][]string{{"a"}, {"b"}, {"c"}}},
		{"diamond", []string{"a", "b", "c", "d"},
			[]Edge{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			[][]string{{"a"}, {"b", "c"}, {"d"}}},
		{"no edges keeps input order", []string{"z", "a"}, nil, [][]string{{"z", "a"}}},
		{"uneven depth", []string{"a", "b", "c"}, []Edge{{"a", "b"}, {"b", "c"}, {"a", "c"}},
			[][]string{{"a"}, {"b"}, {"c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Levels(tt.ids, tt.edges)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("levels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLevelsErrors(t *testing.T) {
	_, err := Levels([]string{"a", "b"}, []Edge{{"a", "b"}, {"b", "a"}})
	if !stderrors.Is(err, errors.CycleDetected("", "")) {
		t.Fatalf("expected CYCLE_DETECTED, got %v", err)
	}
	_, err = Levels([]string{"a"}, []Edge{{"a", "ghost"}})
	if !stderrors.Is(err, errors.UnknownNode("")) {
		t.Fatalf("expected UNKNOWN_NODE, got %v", err)
	}
}

func TestBuildLevelsSortsIDs(t *testing.T) {
	levels, err := BuildLevels(graphOf(nil, "c", "a", "b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]string{{"a", "b", "c"}}, levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectCycle(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	if got := DetectCycle(ids, []Edge{{"a", "b"}, {"b", "c"}}); got != nil {
		t.Fatalf("expected no cycle, got %v", got)
	}
	got := DetectCycle(ids, []Edge{{"a", "b"}, {"b", "c"}, {"c", "b"}, {"c", "d"}})
	if diff := cmp.Diff([]string{"b", "c", "b"}, got); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
	if got := DetectCycle([]string{"a"}, []Edge{{"a", "a"}}); len(got) != 2 {
		t.Errorf("self loop should be a cycle, got %v", got)
	}
}

func TestReachable(t *testing.T) {
	edges := []Edge{{"a", "b"}, {"b", "c"}, {"x", "y"}}
	tests := []struct {
		from, to string
		want     bool
	}{
		{"a", "c", true},
		{"c", "a", false},
		{"a", "y", false},
		{"q", "q", true},
	}
	for _, tt := range tests {
		if got := Reachable(edges, tt.from, tt.to); got != tt.want {
			t.Errorf("Reachable(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEngineRunsInDependencyOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) Node {
		return Func(name, func(context.Context, *State) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name + "-out", nil
		})
	}
	g := &Graph{
		Nodes: map[string]Node{"a": record("a"), "b": record("b"), "c": record("c")},
		Edges: []Edge{{"a", "b"}, {"b", "c"}},
	}

	state := NewState()
	res, err := (&Engine{}).Execute(context.Background(), g, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if res.Failed() {
		t.Error("no node should fail")
	}
	if v, _ := state.Get("b"); v != "b-out" {
		t.Errorf("state[b] = %v", v)
	}
}

func TestEngineSkipsDependentsOfFailures(t *testing.T) {
	boom := stderrors.New("boom")
	g := &Graph{
		Nodes: map[string]Node{
			"a": Func("a", func(context.Context, *State) (any, error) { return nil, boom }),
			"b": Func("b", nil),
			"c": Func("c", nil),
			"d": Func("d", nil),
		},
		Edges: []Edge{{"a", "b"}, {"b", "c"}},
	}

	var mu sync.Mutex
	done := map[string]string{}
	eng := &Engine{Hooks: Hooks{OnNodeDone: func(_ context.Context, r NodeResult) {
		mu.Lock()
		done[r.Name] = r.Status
		mu.Unlock()
	}}}
	res, err := eng.Execute(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"a": StatusFailed, "b": StatusSkipped, "c": StatusSkipped, "d": StatusSuccess}
	if diff := cmp.Diff(want, done); diff != "" {
		t.Errorf("hook statuses mismatch (-want +got):\n%s", diff)
	}
	if !stderrors.Is(res.NodeResults["a"].Error, boom) || !res.Failed() {
		t.Error("failure not reported in result")
	}
}

func TestEngineBoundsParallelism(t *testing.T) {
	var running, peak atomic.Int32
	g := &Graph{Nodes: map[string]Node{}}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		g.Nodes[id] = Func(id, func(context.Context, *State) (any, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		})
	}

	var started atomic.Int32
	eng := &Engine{MaxParallel: 2, Hooks: Hooks{OnNodeStart: func(context.Context, string) { started.Add(1) }}}
	if _, err := eng.Execute(context.Background(), g, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds limit", peak.Load())
	}
	if started.Load() != 6 {
		t.Errorf("started %d nodes, want 6", started.Load())
	}
}

func TestEngineFilter(t *testing.T) {
	g := graphOf([]Edge{{"a", "b"}}, "a", "b", "c")
	res, err := (&Engine{}).ExecuteFiltered(context.Background(), g, nil, func(name string, _ *State) bool {
		return name != "a"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[string]string{}
	for name, nr := range res.NodeResults {
		got[name] = nr.Status
	}
	want := map[string]string{"a": StatusSkipped, "b": StatusSkipped, "c": StatusSuccess}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Graph{
		Nodes: map[string]Node{
			"a": Func("a", func(context.Context, *State) (any, error) { cancel(); return nil, nil }),
			"b": Func("b", func(context.Context, *State) (any, error) {
				t.Error("b should not run after cancellation")
				return nil, nil
			}),
		},
		Edges: []Edge{{"a", "b"}},
	}
	res, err := (&Engine{}).Execute(ctx, g, nil)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.NodeResults["a"].Status != StatusSuccess {
		t.Error("partial result should include a")
	}
}

func TestEngineRejectsCycles(t *testing.T) {
	_, err := (&Engine{}).Execute(context.Background(), graphOf([]Edge{{"a", "b"}, {"b", "a"}}, "a", "b"), nil)
	if !stderrors.Is(err, errors.CycleDetected("", "")) {
		t.Fatalf("expected CYCLE_DETECTED, got %v", err)
	}
}

func TestPortReadWrite(t *testing.T) {
	s := NewState()
	port := Port[int]{Key: "count"}
	Write(s, port, 42)
	if v, err := Read(s, port); err != nil || v != 42 {
		t.Fatalf("Read = %v, %v", v, err)
	}
	s.Set("count", "x")
	if _, err := Read(s, port); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := Read(s, Port[int]{Key: "missing"}); !stderrors.Is(err, errors.NotFound("", "")) {
		t.Errorf("expected NOT_FOUND for a missing key, got %v", err)
	}
	if len(s.Snapshot()) != 1 {
		t.Error("snapshot should copy one key")
	}
}

func TestEngineStoresOutputs(t *testing.T) {
	g := graphOf([]Edge{{"fetch", "count"}}, "fetch", "count")
	g.Nodes["fetch"] = Func("fetch", func(context.Context, *State) (any, error) {
		return []string{"a", "b"}, nil
	})
	g.Nodes["count"] = Func("count", func(_ context.Context, st *State) (any, error) {
		items, err := Read(st, Output[[]string]("fetch"))
		return len(items), err
	})
	res, err := (&Engine{}).Execute(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res)
	}
}

func TestWrappers(t *testing.T) {
	boom := stderrors.New("boom")
	inner := Func("n1", func(context.Context, *State) (any, error) { return nil, boom })
	wrapped := WithLogging(WithMetrics(inner, (*observability.Metrics)(nil)), logger.NewNop())
	if wrapped.Name() != "n1" {
		t.Fatalf("Name() = %q", wrapped.Name())
	}
	if _, err := wrapped.Run(context.Background(), NewState()); !stderrors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
