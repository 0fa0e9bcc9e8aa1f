// Package resilience holds the retry, backoff, circuit breaker and token
// bucket helpers shared by the API client, the task watcher and the gateway.
//
//	env, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(),
//	    func(ctx context.Context) (*Envelope, error) { return c.once(ctx, req) })
package resilience
