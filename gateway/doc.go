// Package gateway serves the dashboard on one port: HTML pages with the
// asset version and shared partials filled in, static assets, server-side
// module pages, and a reverse proxy for /api and /ws to the backend.
//
//	cfg := gateway.Config{Mode: gateway.ModeDev, StaticDir: "frontend"}
//	g, err := gateway.New(cfg, gateway.WithMetrics(metrics))
//	if err != nil {
//		return err
//	}
//	registry.Register(g.Component())
//
// In dev mode every gin response carries a Content-Security-Policy whose
// connect-src allows the backend over both http and ws.
package gateway
