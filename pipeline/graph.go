package pipeline

import (
	"maps"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/ylai/autoplatform/dag"
	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/validation"
)

// Graph is the editor model: nodes in insertion order and one set of edges.
// A node's dependencies are derived from the edges, so removing an edge or a
// node never leaves a stale dependency behind.
type Graph struct {
	mu    sync.RWMutex
	nodes []*Node
	index map[string]*Node
	edges []Edge

	allowCycles bool
	newID       func() string
}

// Option configures a Graph.
type Option func(*Graph)

// AllowCycles disables cycle rejection in AddConnection, for graphs that are
// only forwarded to a backend that does its own checking.
func AllowCycles() Option {
	return func(g *Graph) { g.allowCycles = true }
}

// WithIDGenerator replaces the ULID-based node id generator.
func WithIDGenerator(fn func() string) Option {
	return func(g *Graph) { g.newID = fn }
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{index: make(map[string]*Node), newID: newNodeID}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newNodeID() string {
	return "node-" + ulid.Make().String()
}

// AddNode appends a node at (x, y) and returns its id. Category defaults to
// spider, params to an empty map, and the status starts as waiting.
func (g *Graph) AddNode(x, y float64, script string, opts ...NodeOption) (string, error) {
	n := &Node{Script: script, Category: CategorySpider, Params: map[string]any{}, X: x, Y: y, Status: StatusWaiting}
	for _, opt := range opts {
		opt(n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if n.ID == "" {
		n.ID = g.newID()
	}
	if err := validation.New().NodeID("id", n.ID).Validate(); err != nil {
		return "", err
	}
	if _, exists := g.index[n.ID]; exists {
		return "", errors.Conflict("node " + n.ID + " already exists").WithDetail("node_id", n.ID)
	}
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = n
	return n.ID, nil
}

// AddConnection adds the edge from -> to. It returns false without error
// when from == to or the edge already exists. Unknown endpoints fail with
// UNKNOWN_NODE and, unless the graph allows cycles, an edge closing a cycle
// fails with CYCLE_DETECTED.
func (g *Graph) AddConnection(from, to string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addConnectionLocked(from, to)
}

func (g *Graph) addConnectionLocked(from, to string) (bool, error) {
	if from == to {
		return false, nil
	}
	for _, id := range []string{from, to} {
		if _, ok := g.index[id]; !ok {
			return false, errors.UnknownNode(id)
		}
	}
	if g.hasEdgeLocked(from, to) {
		return false, nil
	}
	if !g.allowCycles && dag.Reachable(g.edges, to, from) {
		return false, errors.CycleDetected(from, to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
	return true, nil
}

func (g *Graph) hasEdgeLocked(from, to string) bool {
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// RemoveConnection deletes the edge and reports whether it existed.
func (g *Graph) RemoveConnection(from, to string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, e := range g.edges {
		if e.From == from && e.To == to {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return true
		}
	}
	return false
}

// DeleteNode removes the node and every edge touching it.
func (g *Graph) DeleteNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.index[id]; !ok {
		return false
	}
	delete(g.index, id)
	for i, n := range g.nodes {
		if n.ID == id {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return true
}

// MoveNode sets the node's canvas position.
func (g *Graph) MoveNode(id string, x, y float64) error {
	return g.update(id, func(n *Node) {
		n.X, n.Y = x, y
	})
}

// UpdateNode applies the non-nil fields of patch.
func (g *Graph) UpdateNode(id string, patch NodePatch) error {
	return g.update(id, func(n *Node) {
		if patch.Script != nil {
			n.Script = *patch.Script
		}
		if patch.Category != nil && *patch.Category != "" {
			n.Category = *patch.Category
		}
		if patch.Params != nil {
			n.Params = maps.Clone(patch.Params)
		}
		if patch.Condition != nil {
			n.Condition = *patch.Condition
		}
	})
}

// SetStatus records a run update for the node.
func (g *Graph) SetStatus(id string, status Status, elapsed float64, cached bool) error {
	return g.update(id, func(n *Node) {
		n.Status, n.Elapsed, n.Cached = status, elapsed, cached
	})
}

// ResetStatuses puts every node back to waiting.
func (g *Graph) ResetStatuses() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range g.nodes {
		n.Status, n.Elapsed, n.Cached = StatusWaiting, 0, false
	}
}

func (g *Graph) update(id string, fn func(*Node)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.index[id]
	if !ok {
		return errors.UnknownNode(id)
	}
	fn(n)
	return nil
}

// Node returns a copy of the node.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// IDs returns node ids in insertion order.
func (g *Graph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.idsLocked()
}

func (g *Graph) idsLocked() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

// DependsOn lists the sources of edges into id, in edge insertion order.
func (g *Graph) DependsOn(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependsOnLocked(id)
}

func (g *Graph) dependsOnLocked(id string) []string {
	deps := []string{}
	for _, e := range g.edges {
		if e.To == id {
			deps = append(deps, e.From)
		}
	}
	return deps
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = nil
	g.edges = nil
	g.index = make(map[string]*Node)
}

// Levels groups node ids by dependency depth.
func (g *Graph) Levels() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return dag.Levels(g.idsLocked(), g.edges)
}

// Validate checks ids, scripts and categories and that the graph is
// acyclic.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v := validation.New()
	for _, n := range g.nodes {
		v.NodeID("nodes."+n.ID+".id", n.ID).
			Required("nodes."+n.ID+".script", n.Script).
			OneOf("nodes."+n.ID+".category", string(n.Category), categoryNames()...)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if len(g.nodes) == 0 {
		return errors.Validation("pipeline has no nodes")
	}
	_, err := dag.Levels(g.idsLocked(), g.edges)
	return err
}

func categoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}
