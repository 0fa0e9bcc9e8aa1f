package pipeline

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/errors"
)

func seqIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("n%d", n)
	})
}

func mustAdd(t *testing.T, g *Graph, script string, opts ...NodeOption) string {
	t.Helper()
	id, err := g.AddNode(40, 40, script, opts...)
	if err != nil {
		t.Fatalf("AddNode(%s): %v", script, err)
	}
	return id
}

func mustConnect(t *testing.T, g *Graph, from, to string) {
	t.Helper()
	if _, err := g.AddConnection(from, to); err != nil {
		t.Fatalf("AddConnection(%s, %s): %v", from, to, err)
	}
}

func TestAddNodeDefaults(t *testing.T) {
	g := New()
	id := mustAdd(t, g, "crawl_news")
	if !strings.HasPrefix(id, "node-") || len(id) != len("node-")+26 {
		t.Errorf("unexpected generated id %q", id)
	}
	n, ok := g.Node(id)
	if !ok {
		t.Fatal("node not found")
	}
	if n.Category != CategorySpider || n.Status != StatusWaiting || n.Params == nil {
		t.Errorf("unexpected defaults %+v", n)
	}

	second := mustAdd(t, g, "x")
	if second == id {
		t.Error("generated ids must be unique")
	}
	if _, err := g.AddNode(0, 0, "dup", WithID(id)); !stderrors.Is(err, errors.Conflict("")) {
		t.Errorf("expected CONFLICT for duplicate id, got %v", err)
	}
	if _, err := g.AddNode(0, 0, "bad", WithID("bad id!")); err == nil {
		t.Error("expected invalid id error")
	}
}

func TestAddConnectionIdempotent(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")

	added, err := g.AddConnection(a, b)
	if err != nil || !added {
		t.Fatalf("first AddConnection = %v, %v", added, err)
	}
	added, err = g.AddConnection(a, b)
	if err != nil || added {
		t.Fatalf("second AddConnection = %v, %v", added, err)
	}
	if added, _ := g.AddConnection(a, a); added {
		t.Error("self connection must be a no-op")
	}
	if diff := cmp.Diff([]Edge{{From: a, To: b}}, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{a}, g.DependsOn(b)); diff != "" {
		t.Errorf("depends_on mismatch (-want +got):\n%s", diff)
	}
}

func TestAddConnectionRejects(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	c := mustAdd(t, g, "c")
	mustConnect(t, g, a, b)
	mustConnect(t, g, b, c)

	if _, err := g.AddConnection(c, a); !stderrors.Is(err, errors.CycleDetected("", "")) {
		t.Fatalf("expected CYCLE_DETECTED, got %v", err)
	}
	if _, err := g.AddConnection(a, "ghost"); !stderrors.Is(err, errors.UnknownNode("")) {
		t.Fatalf("expected UNKNOWN_NODE, got %v", err)
	}
	if len(g.Edges()) != 2 {
		t.Errorf("rejected edges must not be stored, have %d", len(g.Edges()))
	}

	loose := New(seqIDs(), AllowCycles())
	x := mustAdd(t, loose, "x")
	y := mustAdd(t, loose, "y")
	mustConnect(t, loose, x, y)
	if added, err := loose.AddConnection(y, x); err != nil || !added {
		t.Fatalf("AllowCycles graph should accept back edge, got %v, %v", added, err)
	}
	if err := loose.Validate(); !stderrors.Is(err, errors.CycleDetected("", "")) {
		t.Errorf("Validate should still report the cycle, got %v", err)
	}
}

func TestDeleteNodePrunesEdges(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	c := mustAdd(t, g, "c")
	mustConnect(t, g, a, b)
	mustConnect(t, g, b, c)
	mustConnect(t, g, a, c)

	if !g.DeleteNode(b) {
		t.Fatal("DeleteNode returned false")
	}
	if g.DeleteNode(b) {
		t.Error("second DeleteNode should return false")
	}
	if diff := cmp.Diff([]Edge{{From: a, To: c}}, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	for _, n := range g.BuildDagPayload().Nodes {
		for _, dep := range n.DependsOn {
			if dep == b {
				t.Errorf("%s still depends on deleted node", n.ID)
			}
		}
	}
	if diff := cmp.Diff([]string{a, c}, g.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveConnection(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	mustConnect(t, g, a, b)
	if !g.RemoveConnection(a, b) || g.RemoveConnection(a, b) {
		t.Fatal("RemoveConnection should succeed exactly once")
	}
	if len(g.DependsOn(b)) != 0 {
		t.Error("depends_on should be empty")
	}
}

func TestMoveAndUpdateNode(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "a")
	if err := g.MoveNode(a, 300, 120); err != nil {
		t.Fatalf("MoveNode: %v", err)
	}
	script, cat, cond := "ai_captcha", CategoryAI, "prev.success"
	if err := g.UpdateNode(a, NodePatch{Script: &script, Category: &cat, Condition: &cond, Params: map[string]any{"k": 1}}); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	n, _ := g.Node(a)
	want := Node{ID: a, Script: script, Category: cat, Params: map[string]any{"k": 1}, Condition: cond, X: 300, Y: 120, Status: StatusWaiting}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Errorf("node mismatch (-want +got):\n%s", diff)
	}
	if err := g.MoveNode("ghost", 0, 0); !stderrors.Is(err, errors.UnknownNode("")) {
		t.Errorf("expected UNKNOWN_NODE, got %v", err)
	}
}

func TestBuildDagPayload(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "crawl", WithParams(map[string]any{"depth": 2}))
	b := mustAdd(t, g, "clean", WithCategory(CategoryProcess), WithCondition("ok"))
	mustConnect(t, g, a, b)

	data, err := json.Marshal(g.BuildDagPayload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"nodes":[` +
		`{"id":"n1","script":"crawl","category":"spider","params":{"depth":2},"depends_on":[]},` +
		`{"id":"n2","script":"clean","category":"process","params":{},"condition":"ok","depends_on":["n1"]}]}`
	if string(data) != want {
		t.Errorf("payload:\n got %s\nwant %s", data, want)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "crawl")
	b := mustAdd(t, g, "ai", WithCategory(CategoryAI), WithParams(map[string]any{"model": "v2"}))
	c := mustAdd(t, g, "save", WithCategory(CategoryData))
	_ = g.MoveNode(b, 200, 90)
	mustConnect(t, g, a, b)
	mustConnect(t, g, a, c)
	mustConnect(t, g, b, c)
	_ = g.SetStatus(a, StatusSuccess, 1.5, true)

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			var data []byte
			var err error
			if format == "json" {
				data, err = g.ExportJSON()
			} else {
				data, err = g.ExportYAML()
			}
			if err != nil {
				t.Fatalf("export: %v", err)
			}

			h := New()
			if format == "json" {
				err = h.ImportJSON(data)
			} else {
				err = h.ImportYAML(data)
			}
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			if diff := cmp.Diff(g.Export(), h.Export()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(g.Edges(), h.Edges()); diff != "" {
				t.Errorf("edges mismatch (-want +got):\n%s", diff)
			}
			n, _ := h.Node(a)
			if n.Status != StatusWaiting || n.Cached {
				t.Errorf("import should reset status, got %+v", n)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	g := New(seqIDs())
	a := mustAdd(t, g, "crawl")
	b := mustAdd(t, g, "clean", WithCategory(CategoryProcess))
	mustConnect(t, g, a, b)

	p := g.BuildDagPayload()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	h := New()
	if err := h.ImportPayload(p); err != nil {
		t.Fatalf("ImportPayload: %v", err)
	}
	if diff := cmp.Diff(p, h.BuildDagPayload()); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestImportDefaultsAndErrors(t *testing.T) {
	g := New()
	err := g.ImportJSON([]byte(`{"nodes":[{"id":"a","script":"s"},{"id":"b","script":"t","depends_on":["a"]}]}`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	n, _ := g.Node("a")
	if n.X != 40 || n.Y != 40 || n.Category != CategorySpider {
		t.Errorf("defaults not applied: %+v", n)
	}

	tests := map[string]string{
		"bad json":       `{"nodes":[`,
		"missing id":     `{"nodes":[{"script":"s"}]}`,
		"duplicate id":   `{"nodes":[{"id":"a","script":"s"},{"id":"a","script":"s"}]}`,
		"unknown dep":    `{"nodes":[{"id":"a","script":"s","depends_on":["zz"]}]}`,
		"bad category":   `{"nodes":[{"id":"a","script":"s","category":"video"}]}`,
		"cycle":          `{"nodes":[{"id":"a","script":"s","depends_on":["b"]},{"id":"b","script":"s","depends_on":["a"]}]}`,
		"missing script": `{"nodes":[{"id":"a"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if err := g.ImportJSON([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
			if g.Len() != 2 {
				t.Errorf("failed import must leave the graph unchanged, have %d nodes", g.Len())
			}
		})
	}
}

func TestLevelsAndValidate(t *testing.T) {
	g := New(seqIDs())
	if err := g.Validate(); err == nil {
		t.Error("empty graph should not validate")
	}
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	c := mustAdd(t, g, "c")
	mustConnect(t, g, a, c)
	mustConnect(t, g, b, c)

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if diff := cmp.Diff([][]string{{a, b}, {c}}, levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	empty := ""
	_ = g.UpdateNode(a, NodePatch{Script: &empty})
	if err := g.Validate(); err == nil {
		t.Error("empty script should fail validation")
	}
}

func TestDrawWires(t *testing.T) {
	g := New(seqIDs())
	a, _ := g.AddNode(0, 0, "a")
	b, _ := g.AddNode(200, 100, "b")
	mustConnect(t, g, a, b)

	wires := g.DrawWires(nil)
	want := []Wire{{From: a, To: b, Path: "M 80 32 C 160 32, 200 132, 280 132"}}
	if diff := cmp.Diff(want, wires); diff != "" {
		t.Errorf("wires mismatch (-want +got):\n%s", diff)
	}

	svg := string(RenderSVG(wires))
	for _, s := range []string{`stroke="#64748b"`, `stroke-width="2"`, `fill="none"`, want[0].Path} {
		if !strings.Contains(svg, s) {
			t.Errorf("svg missing %s", s)
		}
	}

	onlyA := func(id string) (Box, bool) {
		if id == a {
			return Box{W: 10, H: 10}, true
		}
		return Box{}, false
	}
	if len(g.DrawWires(onlyA)) != 0 {
		t.Error("edges with an unplaced endpoint should be skipped")
	}
}

func TestTemplates(t *testing.T) {
	for _, c := range Categories {
		if len(TemplatesFor(c)) == 0 {
			t.Errorf("no templates for %s", c)
		}
	}
	g := New(seqIDs())
	id, err := g.AddFromTemplate(ScriptTemplates([]string{"enum_cards"})[0], 10, 20)
	if err != nil {
		t.Fatalf("AddFromTemplate: %v", err)
	}
	n, _ := g.Node(id)
	if n.Script != "enum_cards" || n.Category != CategorySpider || n.X != 10 {
		t.Errorf("unexpected node %+v", n)
	}
}
