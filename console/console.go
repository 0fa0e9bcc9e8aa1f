package console

import (
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
)

// Backend paths used by the dashboard.
const (
	PathHealth     = "/health"
	PathLogs       = "/api/sse/logs"
	PathJSError    = "/api/js-error"
	PathJSConsole  = "/api/js-console"
	PathDocs       = "/api/docs/"
	PathStatus     = "/api/status"
	PathFeatures   = "/api/dashboard/features"
	PathScripts    = "/scripts"
	PathModules    = "/api/modules"
	PathRun        = "/api/run"
	PathScheduler  = "/api/scheduler/config"
	PathPolicyGet  = "/api/policy/get"
	PathPolicySet  = "/api/policy/set"
	PathAIPipeline = "/ai/pipeline"
)

// Console groups the dashboard calls against one backend.
type Console struct {
	client *httpclient.Client
	log    *logger.Logger
}

// New creates a Console on top of client.
func New(client *httpclient.Client) *Console {
	return &Console{client: client, log: logger.Get("console")}
}

// Client returns the underlying HTTP client.
func (c *Console) Client() *httpclient.Client { return c.client }
