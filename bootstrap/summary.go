package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ylai/autoplatform/component"
)

// ClientInfo is an outbound connection shown in the summary.
type ClientInfo struct {
	Name   string
	Target string
	Type   string // "http", "ws", "redis"
}

// Summary collects what the startup summary prints. Infrastructure, routes
// and health come from the component registry; clients are tracked by hand.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	clients         []ClientInfo
	notes           []string
}

// NewSummary creates a summary for a service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackClient records an outbound connection, such as the backend a
// gateway proxies to.
func (s *Summary) TrackClient(name, target, clientType string) {
	s.clients = append(s.clients, ClientInfo{Name: name, Target: target, Type: clientType})
}

// Note adds a free-form line at the end of the summary.
func (s *Summary) Note(format string, args ...any) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// Display writes the summary to w.
func (s *Summary) Display(ctx context.Context, w io.Writer, registry *component.Registry) {
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())

	var (
		infra  []component.Description
		routes []component.Route
		health []component.Health
	)
	if registry != nil {
		infra = registry.Summary()
		for _, c := range registry.All() {
			if rp, ok := c.(component.RouteProvider); ok {
				routes = append(routes, rp.Routes()...)
			}
		}
		health = registry.HealthAll(ctx)
	}

	if len(infra) > 0 {
		fmt.Fprintf(w, "\nInfrastructure\n")
		for i, d := range infra {
			details := d.Details
			if d.Port > 0 && !strings.HasSuffix(details, fmt.Sprintf(":%d", d.Port)) {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", branch(i, len(infra)), d.Name, d.Type, details)
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s -> %s\n", branch(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	if len(s.clients) > 0 {
		fmt.Fprintf(w, "\nClients\n")
		for i, c := range s.clients {
			fmt.Fprintf(w, "   %s %s -> %s [%s]\n", branch(i, len(s.clients)), c.Name, c.Target, c.Type)
		}
	}

	if len(health) > 0 {
		fmt.Fprintf(w, "\nHealth\n")
		healthy := 0
		for i, h := range health {
			msg := ""
			if h.Message != "" {
				msg = " (" + h.Message + ")"
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(health)), healthIcon(h.Status), h.Name, h.Status, msg)
			if h.Status == component.StatusHealthy {
				healthy++
			}
		}
		if healthy == len(health) {
			fmt.Fprintf(w, "\nAll components healthy (%d/%d)\n", healthy, len(health))
		} else {
			fmt.Fprintf(w, "\nSome components have issues (%d/%d healthy)\n", healthy, len(health))
		}
	} else {
		fmt.Fprintf(w, "   └── No components registered\n")
	}

	for _, n := range s.notes {
		fmt.Fprintf(w, "%s\n", n)
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
