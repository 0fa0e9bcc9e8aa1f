package runner

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/pipeline"
)

// MaxLogs is how many log lines a task keeps; older lines are dropped.
const MaxLogs = 500

// TaskState tracks one run: node statuses, a bounded log and progress.
// Terminal node statuses are sticky: a later frame for a node that already
// succeeded, failed or was skipped is logged and ignored.
type TaskState struct {
	TaskID string

	mu       sync.RWMutex
	order    []string
	nodes    map[string]pipeline.Status
	elapsed  map[string]float64
	cached   map[string]bool
	logs     []string
	progress int
	terminal int
	log      *logger.Logger
}

// NewTaskState starts tracking taskID. Seeding node ids makes progress count
// nodes that have not reported yet.
func NewTaskState(taskID string, nodeIDs ...string) *TaskState {
	s := &TaskState{
		TaskID:  taskID,
		nodes:   make(map[string]pipeline.Status, len(nodeIDs)),
		elapsed: make(map[string]float64, len(nodeIDs)),
		cached:  make(map[string]bool, len(nodeIDs)),
		log:     logger.Get("runner"),
	}
	for _, id := range nodeIDs {
		if _, dup := s.nodes[id]; !dup {
			s.order = append(s.order, id)
		}
		s.nodes[id] = pipeline.StatusWaiting
	}
	return s
}

// Apply records a node update and reports whether it changed the state.
func (s *TaskState) Apply(m Message) bool {
	if !m.IsNodeUpdate() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.nodes[m.NodeID]
	if known && prev.Terminal() {
		if m.Status != prev {
			s.log.Debug("ignoring update after terminal status", logger.Fields(
				logger.FieldTaskID, s.TaskID, logger.FieldNodeID, m.NodeID,
				"current", string(prev), logger.FieldStatus, string(m.Status)))
			s.appendLocked(fmt.Sprintf("ignored %s -> %s for %s", prev, m.Status, m.NodeID))
		}
		return false
	}
	if !known {
		s.order = append(s.order, m.NodeID)
	}
	if m.Status != "" {
		s.nodes[m.NodeID] = m.Status
	} else if !known {
		s.nodes[m.NodeID] = pipeline.StatusWaiting
	}
	s.elapsed[m.NodeID] = m.Elapsed
	s.cached[m.NodeID] = m.Cached
	s.recountLocked()
	return true
}

func (s *TaskState) recountLocked() {
	s.terminal = 0
	for _, st := range s.nodes {
		if st.Terminal() {
			s.terminal++
		}
	}
	s.progress = 0
	if total := len(s.nodes); total > 0 {
		s.progress = int(math.Round(float64(s.terminal) / float64(total) * 100))
	}
}

// Progress is the percentage of nodes in a terminal status.
func (s *TaskState) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Status returns a node's status.
func (s *TaskState) Status(nodeID string) (pipeline.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.nodes[nodeID]
	return st, ok
}

// Elapsed returns the seconds a node reported, and whether it was served
// from cache.
func (s *TaskState) Elapsed(nodeID string) (seconds float64, cached bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsed[nodeID], s.cached[nodeID]
}

// Nodes copies the statuses.
func (s *TaskState) Nodes() map[string]pipeline.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]pipeline.Status, len(s.nodes))
	for k, v := range s.nodes {
		out[k] = v
	}
	return out
}

// NodeIDs lists nodes in the order they were first seen.
func (s *TaskState) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Done reports whether every known node is terminal.
func (s *TaskState) Done() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes) > 0 && s.terminal == len(s.nodes)
}

// AppendLog adds a line, dropping the oldest beyond MaxLogs.
func (s *TaskState) AppendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(line)
}

func (s *TaskState) appendLocked(line string) {
	s.logs = append(s.logs, line)
	if over := len(s.logs) - MaxLogs; over > 0 {
		s.logs = append(s.logs[:0:0], s.logs[over:]...)
	}
}

// Logs copies the log lines, oldest first.
func (s *TaskState) Logs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.logs...)
}

// FilterLogs returns lines containing keyword; an empty keyword returns all.
func (s *TaskState) FilterLogs(keyword string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, l := range s.logs {
		if keyword == "" || strings.Contains(l, keyword) {
			out = append(out, l)
		}
	}
	return out
}

// ApplyTo writes the task's node statuses onto g. Nodes g does not contain
// are skipped.
func (s *TaskState) ApplyTo(g *pipeline.Graph) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, st := range s.nodes {
		_ = g.SetStatus(id, st, s.elapsed[id], s.cached[id])
	}
}
