package pipeline

import (
	"encoding/json"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/ylai/autoplatform/dag"
	"github.com/ylai/autoplatform/validation"
)

// PayloadNode is a node as submitted to the run endpoints.
type PayloadNode struct {
	ID        string         `json:"id" yaml:"id" validate:"required,node_id"`
	Script    string         `json:"script" yaml:"script" validate:"required"`
	Category  Category       `json:"category" yaml:"category"`
	Params    map[string]any `json:"params" yaml:"params"`
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	DependsOn []string       `json:"depends_on" yaml:"depends_on"`
}

// Payload is the body of a run request.
type Payload struct {
	Nodes          []PayloadNode `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
	MaxConcurrency int           `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty" validate:"min=0"`
}

// Validate checks field tags, unique ids, known dependencies and acyclicity.
func (p Payload) Validate() error {
	if err := validation.Validate(p); err != nil {
		return err
	}
	if err := p.toDocument().check(); err != nil {
		return err
	}
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	_, err := dag.Levels(ids, p.Edges())
	return err
}

// Edges lists the dependencies declared by the payload.
func (p Payload) Edges() []Edge {
	var edges []Edge
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			edges = append(edges, Edge{From: dep, To: n.ID})
		}
	}
	return edges
}

// BuildDagPayload snapshots the graph as a run payload.
func (g *Graph) BuildDagPayload() Payload {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p := Payload{Nodes: make([]PayloadNode, len(g.nodes))}
	for i, n := range g.nodes {
		p.Nodes[i] = PayloadNode{
			ID:        n.ID,
			Script:    n.Script,
			Category:  n.Category,
			Params:    cloneParams(n.Params),
			Condition: n.Condition,
			DependsOn: g.dependsOnLocked(n.ID),
		}
	}
	return p
}

// DocumentNode is a node in an exported editor document.
type DocumentNode struct {
	ID        string         `json:"id" yaml:"id" validate:"required,node_id"`
	Script    string         `json:"script" yaml:"script" validate:"required"`
	Category  Category       `json:"category" yaml:"category"`
	Params    map[string]any `json:"params" yaml:"params"`
	Condition string         `json:"condition" yaml:"condition"`
	X         float64        `json:"x" yaml:"x"`
	Y         float64        `json:"y" yaml:"y"`
	DependsOn []string       `json:"depends_on" yaml:"depends_on"`
}

// Document is the export/import format of the editor.
type Document struct {
	Nodes []DocumentNode `json:"nodes" yaml:"nodes" validate:"dive"`
}

// Export snapshots the graph with positions.
func (g *Graph) Export() Document {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d := Document{Nodes: make([]DocumentNode, len(g.nodes))}
	for i, n := range g.nodes {
		d.Nodes[i] = DocumentNode{
			ID:        n.ID,
			Script:    n.Script,
			Category:  n.Category,
			Params:    cloneParams(n.Params),
			Condition: n.Condition,
			X:         n.X,
			Y:         n.Y,
			DependsOn: g.dependsOnLocked(n.ID),
		}
	}
	return d
}

// ExportJSON is Export encoded as indented JSON.
func (g *Graph) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(g.Export(), "", "  ")
}

// ExportYAML is Export encoded as YAML.
func (g *Graph) ExportYAML() ([]byte, error) {
	return yaml.Marshal(g.Export())
}

// Import replaces the graph with doc. Nodes are added first, then edges from
// each node's depends_on. Missing positions default to 40, a missing
// category to spider, and every status starts as waiting. The graph is left
// unchanged when doc is invalid.
func (g *Graph) Import(doc Document) error {
	if err := validation.Validate(doc); err != nil {
		return err
	}
	if err := doc.check(); err != nil {
		return err
	}

	staged := New(WithIDGenerator(g.newID))
	staged.allowCycles = g.allowCycles
	for _, n := range doc.Nodes {
		x, y := n.X, n.Y
		if x == 0 {
			x = 40
		}
		if y == 0 {
			y = 40
		}
		if _, err := staged.AddNode(x, y, n.Script,
			WithID(n.ID), WithCategory(n.Category), WithParams(n.Params), WithCondition(n.Condition)); err != nil {
			return err
		}
	}
	for _, n := range doc.Nodes {
		for _, dep := range n.DependsOn {
			if _, err := staged.AddConnection(dep, n.ID); err != nil {
				return err
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes, g.index, g.edges = staged.nodes, staged.index, staged.edges
	return nil
}

// ImportJSON decodes and imports a JSON document.
func (g *Graph) ImportJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return validationError("document", err)
	}
	return g.Import(doc)
}

// ImportYAML decodes and imports a YAML document.
func (g *Graph) ImportYAML(data []byte) error {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return validationError("document", err)
	}
	return g.Import(doc)
}

// ImportPayload loads a run payload; nodes get default positions.
func (g *Graph) ImportPayload(p Payload) error {
	return g.Import(p.toDocument())
}

func (p Payload) toDocument() Document {
	d := Document{Nodes: make([]DocumentNode, len(p.Nodes))}
	for i, n := range p.Nodes {
		d.Nodes[i] = DocumentNode{
			ID: n.ID, Script: n.Script, Category: n.Category, Params: n.Params,
			Condition: n.Condition, DependsOn: n.DependsOn,
		}
	}
	return d
}

// check verifies what struct tags cannot: unique ids, known dependencies,
// known categories.
func (d Document) check() error {
	ids := make([]string, len(d.Nodes))
	known := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
		known[n.ID] = true
	}

	v := validation.New().Unique("nodes.id", ids)
	for _, n := range d.Nodes {
		v.OneOf("nodes."+n.ID+".category", string(n.Category), categoryNames()...)
		for _, dep := range n.DependsOn {
			v.Check(known[dep], "nodes."+n.ID+".depends_on", "unknown node "+dep)
		}
	}
	return v.Validate()
}

func validationError(field string, err error) error {
	return validation.New().AddError(field, err.Error()).Validate()
}

func cloneParams(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return maps.Clone(p)
}
