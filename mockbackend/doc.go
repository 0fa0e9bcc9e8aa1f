// Package mockbackend is a local stand-in for the automation backend, used
// by `ylai mock` and by tests of the dashboard client packages.
//
// It serves the login, dashboard, policy, scheduler and docs endpoints, a
// live log feed over SSE, and pipeline runs whose node statuses stream over
// WebSocket:
//
//	b, err := mockbackend.New(mockbackend.Config{Port: 8001})
//	if err != nil {
//		return err
//	}
//	if err := b.Start(ctx); err != nil {
//		return err
//	}
//	defer b.Stop(context.Background())
//
// Built-in accounts are listed in DefaultAccounts. Pipelines run on the dag
// engine with simulated scripts; a node fails when its params set
// "fail": true or its script name starts with "fail".
package mockbackend
