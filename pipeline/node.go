package pipeline

import (
	"maps"

	"github.com/ylai/autoplatform/dag"
)

// Category groups node scripts in the editor.
type Category string

const (
	CategorySpider  Category = "spider"
	CategoryAI      Category = "ai"
	CategoryProcess Category = "process"
	CategoryData    Category = "data"
)

// Categories lists the categories the editor offers.
var Categories = []Category{CategorySpider, CategoryAI, CategoryProcess, CategoryData}

// Status is a node's run status. Backends may send values outside the
// constants below; they are kept and displayed as received.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether s ends a node's run.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// Edge is a dependency: To depends on From.
type Edge = dag.Edge

// Node is one script in the graph.
type Node struct {
	ID        string
	Script    string
	Category  Category
	Params    map[string]any
	Condition string
	X, Y      float64

	Status  Status
	Elapsed float64
	Cached  bool
}

func (n *Node) clone() Node {
	c := *n
	c.Params = maps.Clone(n.Params)
	if c.Params == nil {
		c.Params = map[string]any{}
	}
	return c
}

// NodeOption customizes AddNode.
type NodeOption func(*Node)

// WithID uses id instead of a generated one.
func WithID(id string) NodeOption {
	return func(n *Node) { n.ID = id }
}

func WithCategory(c Category) NodeOption {
	return func(n *Node) {
		if c != "" {
			n.Category = c
		}
	}
}

func WithParams(p map[string]any) NodeOption {
	return func(n *Node) {
		if p != nil {
			n.Params = maps.Clone(p)
		}
	}
}

func WithCondition(cond string) NodeOption {
	return func(n *Node) { n.Condition = cond }
}

// NodePatch holds the fields UpdateNode changes; nil fields are left alone.
type NodePatch struct {
	Script    *string
	Category  *Category
	Params    map[string]any
	Condition *string
}
