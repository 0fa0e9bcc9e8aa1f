// Package tui is a terminal view of a running pipeline task: one line per
// node, a progress bar and the task log, redrawn as status frames arrive.
//
//	st, err := r.Run(ctx, graph, 2)
//	if err != nil {
//		return err
//	}
//	return tui.Watch(ctx, r, st, []tui.Option{tui.WithQuitWhenDone()})
//
// The model reads node statuses from the runner.TaskState the watcher
// feeds; a Bridge turns watcher callbacks into Bubble Tea messages.
package tui
