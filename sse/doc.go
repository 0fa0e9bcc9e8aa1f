// Package sse serves server-sent event streams, such as the live log feed
// at /api/sse/logs.
//
// A Hub owns the connected clients. Publishing sends a payload to every
// client whose id matches a glob pattern, so one hub can carry several
// feeds keyed by prefix:
//
//	hub := sse.NewHub()
//	go hub.Run()
//	router.GET("/api/sse/logs", sse.Handler(hub, "logs"))
//	hub.Publish("logs:*", payload)
package sse
