package dag

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Hooks observe node execution. Both callbacks run on the node's goroutine.
type Hooks struct {
	OnNodeStart func(ctx context.Context, name string)
	OnNodeDone  func(ctx context.Context, result NodeResult)
}

// Engine executes a graph level by level.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
	Hooks       Hooks
}

// NodeFilter returns true if a node should execute.
type NodeFilter func(name string, state *State) bool

// Execute runs all nodes in dependency order. A node whose dependency failed
// or was skipped is skipped too. Node failures are reported in the Result;
// the returned error is a graph error or ctx cancellation.
func (e *Engine) Execute(ctx context.Context, g *Graph, state *State) (*Result, error) {
	return e.execute(ctx, g, state, nil)
}

// ExecuteFiltered is Execute where nodes rejected by filter are skipped.
func (e *Engine) ExecuteFiltered(ctx context.Context, g *Graph, state *State, filter NodeFilter) (*Result, error) {
	return e.execute(ctx, g, state, filter)
}

func (e *Engine) execute(ctx context.Context, g *Graph, state *State, filter NodeFilter) (*Result, error) {
	start := time.Now()
	if state == nil {
		state = NewState()
	}

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}

	parents := make(map[string][]string)
	for _, edge := range g.Edges {
		parents[edge.To] = append(parents[edge.To], edge.From)
	}

	result := &Result{NodeResults: make(map[string]NodeResult, len(g.Nodes)), Levels: levels}
	var mu sync.Mutex

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		var toRun []string
		for _, name := range level {
			if blocked(result.NodeResults, parents[name]) || (filter != nil && !filter(name, state)) {
				nr := NodeResult{Name: name, Status: StatusSkipped}
				result.NodeResults[name] = nr
				e.done(ctx, nr)
				continue
			}
			toRun = append(toRun, name)
		}
		if len(toRun) == 0 {
			continue
		}

		var eg errgroup.Group
		eg.SetLimit(e.concurrency(len(toRun)))
		for _, name := range toRun {
			eg.Go(func() error {
				nr := e.executeNode(ctx, g.Nodes[name], state)
				mu.Lock()
				result.NodeResults[name] = nr
				mu.Unlock()
				return nil
			})
		}
		_ = eg.Wait()
	}

	result.Duration = time.Since(start)
	return result, nil
}

func blocked(results map[string]NodeResult, parents []string) bool {
	for _, p := range parents {
		if s := results[p].Status; s == StatusFailed || s == StatusSkipped {
			return true
		}
	}
	return false
}

func (e *Engine) executeNode(ctx context.Context, node Node, state *State) NodeResult {
	name := node.Name()
	if e.Hooks.OnNodeStart != nil {
		e.Hooks.OnNodeStart(ctx, name)
	}

	start := time.Now()
	output, err := node.Run(ctx, state)
	nr := NodeResult{Name: name, Status: StatusSuccess, Duration: time.Since(start), Output: output}
	if err != nil {
		nr.Status = StatusFailed
		nr.Error = err
		nr.Output = nil
	} else if output != nil {
		state.Set(name, output)
	}

	e.done(ctx, nr)
	return nr
}

func (e *Engine) done(ctx context.Context, nr NodeResult) {
	if e.Hooks.OnNodeDone != nil {
		e.Hooks.OnNodeDone(ctx, nr)
	}
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}
