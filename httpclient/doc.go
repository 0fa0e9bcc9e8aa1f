// Package httpclient is the console's backend API client.
//
// Every call goes through Client.Do, which
//
//   - adds "Authorization: Bearer <token>" from the TokenSource,
//   - unwraps {"code": 0, "data": ...} envelopes and turns a non-zero code
//     into a KindEnvelope *Error carrying the raw body,
//   - clears the token and redirects to /login on 401,
//   - retries 5xx, timeouts, DNS and connection failures RetryTimes times
//     with delays RetryDelay, 2*RetryDelay, 4*RetryDelay.
//
//	c, _ := httpclient.New(httpclient.Config{BaseURL: "http://127.0.0.1:8001"},
//	    httpclient.WithTokenSource(session))
//	features, err := httpclient.GetJSON[Features](ctx, c, "/api/dashboard/features")
package httpclient
