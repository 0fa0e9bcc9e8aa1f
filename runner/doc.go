// Package runner submits pipeline graphs to the backend and follows the
// resulting task over a WebSocket.
//
//	r := runner.New(client, runner.EngineWS)
//	st, err := r.Run(ctx, graph, 0)
//	w := r.Watch(st.TaskID, st, runner.OnStatus(func(m runner.Message) {
//	    st.ApplyTo(graph)
//	}))
//	err = w.Start(ctx)
//	defer w.Close()
//
// The watcher sends a resume frame after every connect, reconnects with a
// 1s doubling backoff capped at 30s and stops on context cancellation,
// Close, MaxRetries or, with StopWhenDone, once every node is terminal.
package runner
