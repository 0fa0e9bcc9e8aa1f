// Package server runs the gin HTTP servers of the gateway and the mock
// backend behind an h2c handler, with the shared middleware stack and the
// {code, data} response helpers.
//
//	srv := server.New(cfg, log)
//	srv.ApplyMiddleware()
//	srv.Engine().GET("/health", health)
//	registry.Register(server.NewComponent("gateway", srv))
package server
