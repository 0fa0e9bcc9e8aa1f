package dag

import "context"

// Node is the execution unit in a DAG.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

// Func adapts a function to Node.
func Func(name string, fn func(ctx context.Context, state *State) (any, error)) Node {
	return &funcNode{name: name, fn: fn}
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (any, error)
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) {
	if n.fn == nil {
		return nil, nil
	}
	return n.fn(ctx, state)
}
