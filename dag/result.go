package dag

import "time"

// Node statuses reported by the engine. They match the pipeline status
// vocabulary streamed to clients.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Result holds the outcome of a graph execution.
type Result struct {
	NodeResults map[string]NodeResult
	Levels      [][]string
	Duration    time.Duration
}

// Failed reports whether any node failed.
func (r *Result) Failed() bool {
	for _, nr := range r.NodeResults {
		if nr.Status == StatusFailed {
			return true
		}
	}
	return false
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name     string
	Status   string // success | failed | skipped
	Duration time.Duration
	Output   any
	Error    error
}
