// Package dag orders and executes dependency graphs.
//
// Levels groups node ids with Kahn's algorithm: every node lands one level
// after its deepest dependency, so a level can run in parallel. Engine runs a
// Graph level by level with bounded parallelism, skipping the dependents of
// failed nodes, and reports every node through Hooks:
//
//	eng := &dag.Engine{MaxParallel: 4, Hooks: dag.Hooks{
//	    OnNodeDone: func(ctx context.Context, r dag.NodeResult) { publish(r.Name, r.Status) },
//	}}
//	res, err := eng.Execute(ctx, g, dag.NewState())
//
// The pipeline package uses Levels and Reachable for editor validation; the
// mock backend uses Engine to simulate runs.
package dag
