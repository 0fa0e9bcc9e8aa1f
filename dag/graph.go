package dag

import (
	"sort"

	"github.com/ylai/autoplatform/errors"
)

// Graph declares nodes and edges (dependency relationships).
type Graph struct {
	Nodes map[string]Node
	Edges []Edge
}

// Edge represents a dependency: To depends on From.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// IDs returns the node ids in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildLevels groups the graph's nodes by dependency level.
func BuildLevels(g *Graph) ([][]string, error) {
	return Levels(g.IDs(), g.Edges)
}

// Levels runs Kahn's algorithm over ids and edges. Nodes within one level
// have no dependency on each other and can execute in parallel. A level keeps
// the relative order of ids, so the result is deterministic.
//
// An edge naming an id outside ids fails with UNKNOWN_NODE; a cycle fails with
// CYCLE_DETECTED naming one edge on it.
func Levels(ids []string, edges []Edge) ([][]string, error) {
	pos := make(map[string]int, len(ids))
	inDegree := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
		inDegree[id] = 0
	}

	dependents := make(map[string][]string) // from -> [to...]
	for _, e := range edges {
		if _, ok := pos[e.From]; !ok {
			return nil, errors.UnknownNode(e.From)
		}
		if _, ok := pos[e.To]; !ok {
			return nil, errors.UnknownNode(e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, id := range queue {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return pos[next[i]] < pos[next[j]] })
		queue = next
	}

	if visited != len(ids) {
		cycle := DetectCycle(ids, edges)
		if len(cycle) >= 2 {
			return nil, errors.CycleDetected(cycle[len(cycle)-2], cycle[len(cycle)-1]).
				WithDetail("cycle", cycle)
		}
		return nil, errors.CycleDetected("", "")
	}
	return levels, nil
}

// DetectCycle returns one cycle as a closed path (first id repeated at the
// end), or nil when the graph is acyclic. Edges to unknown ids are ignored.
func DetectCycle(ids []string, edges []Edge) []string {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	adj := make(map[string][]string)
	for _, e := range edges {
		if known[e.From] && known[e.To] {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(ids))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append(append([]string(nil), stack[i:]...), next)
						return true
					}
				}
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// Reachable reports whether to can be reached from from by following edges.
// A node always reaches itself.
func Reachable(edges []Edge, from, to string) bool {
	if from == to {
		return true
	}
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
