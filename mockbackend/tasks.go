package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ylai/autoplatform/dag"
	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/resilience"
	"github.com/ylai/autoplatform/runner"
)

// Frame types on the task status stream besides node updates.
const (
	FrameNodeUpdate = "node_update"
	FrameTaskDone   = "task_done"
)

// subscriberBuffer is how many frames a slow stream may lag before frames
// are dropped for it. A resume replays the snapshot.
const subscriberBuffer = 64

// Task is one submitted pipeline run and its status frames.
type Task struct {
	ID     string
	Engine runner.Engine
	order  []string

	mu       sync.Mutex
	latest   map[string]runner.Message
	doneMsg  *runner.Message
	subs     map[chan []byte]struct{}
	finished chan struct{}
}

func newTask(id string, engine runner.Engine, nodeIDs []string) *Task {
	return &Task{
		ID:       id,
		Engine:   engine,
		order:    nodeIDs,
		latest:   make(map[string]runner.Message, len(nodeIDs)),
		subs:     make(map[chan []byte]struct{}),
		finished: make(chan struct{}),
	}
}

// Done is closed when the run has ended, however it ended.
func (t *Task) Done() <-chan struct{} { return t.finished }

// Snapshot returns the latest frame of every node in submission order,
// followed by the completion frame once the task finished.
func (t *Task) Snapshot() []runner.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]runner.Message, 0, len(t.order)+1)
	for _, id := range t.order {
		if m, ok := t.latest[id]; ok {
			out = append(out, m)
		}
	}
	if t.doneMsg != nil {
		out = append(out, *t.doneMsg)
	}
	return out
}

// Subscribe streams every frame published from now on. Call cancel to stop.
func (t *Task) Subscribe() (frames <-chan []byte, cancel func()) {
	ch := make(chan []byte, subscriberBuffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
	}
}

func (t *Task) publish(m runner.Message) {
	m.TaskID = t.ID
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case m.IsNodeUpdate():
		t.latest[m.NodeID] = m
	case m.Type == FrameTaskDone:
		t.doneMsg = &m
	}
	for ch := range t.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// Tasks runs submitted pipelines on the dag engine, at most Limit at a time.
type Tasks struct {
	delay   time.Duration
	metrics *observability.Metrics
	log     *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	limit   int
	running int
	closed  bool
	tasks   map[string]*Task
}

// NewTasks creates a task runner. delay is the default node duration.
func NewTasks(limit int, delay time.Duration, metrics *observability.Metrics) *Tasks {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Tasks{
		delay:   delay,
		metrics: metrics,
		log:     logger.Get("mockbackend").WithComponent("tasks"),
		ctx:     ctx,
		cancel:  cancel,
		limit:   max(1, limit),
		tasks:   make(map[string]*Task),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Limit is the number of pipelines allowed to run at once.
func (m *Tasks) Limit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}

// SetLimit changes the concurrency limit; queued runs start when it grows.
func (m *Tasks) SetLimit(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = max(1, n)
	m.cond.Broadcast()
	return m.limit
}

// Get returns a submitted task.
func (m *Tasks) Get(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Submit validates p and starts it in the background. Every node starts as
// pending.
func (m *Tasks) Submit(engine runner.Engine, p pipeline.Payload) (*Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.ServiceUnavailable("pipeline runner")
	}
	t := newTask(strings.ToLower(ulid.Make().String()), engine, ids)
	m.tasks[t.ID] = t
	m.wg.Add(1)
	m.mu.Unlock()

	for _, id := range ids {
		t.publish(runner.Message{Type: FrameNodeUpdate, NodeID: id, Status: pipeline.StatusPending})
	}
	m.metrics.PipelineRun(m.ctx, string(engine), len(ids))
	m.log.Info("pipeline accepted", logger.Fields(
		logger.FieldTaskID, t.ID, logger.FieldEngine, string(engine), "nodes", len(ids)))

	go m.run(t, p)
	return t, nil
}

// Close cancels running pipelines and waits for them.
func (m *Tasks) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Tasks) acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.running >= m.limit && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return false
	}
	m.running++
	return true
}

func (m *Tasks) release() {
	m.mu.Lock()
	m.running--
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Tasks) run(t *Task, p pipeline.Payload) {
	defer m.wg.Done()
	defer close(t.finished)
	if !m.acquire() {
		t.publish(runner.Message{Type: FrameTaskDone, Message: "cancelled"})
		return
	}
	defer m.release()

	log := m.log.WithFields(logger.Fields(logger.FieldTaskID, t.ID))
	g := &dag.Graph{Nodes: make(map[string]dag.Node, len(p.Nodes)), Edges: p.Edges()}
	for _, n := range p.Nodes {
		g.Nodes[n.ID] = dag.WithLogging(dag.WithMetrics(dag.Func(n.ID, m.work(n)), m.metrics), log)
	}
	engine := dag.Engine{
		MaxParallel: p.MaxConcurrency,
		Hooks: dag.Hooks{
			OnNodeStart: func(_ context.Context, name string) {
				t.publish(runner.Message{Type: FrameNodeUpdate, NodeID: name, Status: pipeline.StatusRunning})
			},
			OnNodeDone: func(_ context.Context, nr dag.NodeResult) {
				msg := runner.Message{
					Type:    FrameNodeUpdate,
					NodeID:  nr.Name,
					Status:  pipeline.Status(nr.Status),
					Elapsed: nr.Duration.Seconds(),
				}
				if nr.Error != nil {
					msg.Message = nr.Error.Error()
				} else if out, ok := nr.Output.(scriptOutput); ok {
					msg.Message = fmt.Sprintf("%d records", out.Records)
				}
				t.publish(msg)
			},
		},
	}

	res, err := engine.Execute(m.ctx, g, dag.NewState())
	outcome := "success"
	switch {
	case err != nil:
		outcome = "cancelled"
	case res.Failed():
		outcome = "failed"
	}
	t.publish(runner.Message{Type: FrameTaskDone, Message: outcome})
	fields := logger.Fields("outcome", outcome)
	if res != nil {
		fields[logger.FieldDuration] = res.Duration.Milliseconds()
	}
	log.Info("pipeline finished", fields)
}

// scriptOutput is what a simulated script leaves in the run state.
type scriptOutput struct {
	Script  string
	Records int
}

// recordsPerScript is how many records a script without upstream input
// pretends to produce.
const recordsPerScript = 10

// work simulates a script. It sleeps for the node's duration_ms param, or
// the default delay, and fails when params.fail is true or the script name
// starts with "fail". Records add up along the dependency chain.
func (m *Tasks) work(n pipeline.PayloadNode) func(context.Context, *dag.State) (any, error) {
	delay := m.delay
	if ms, ok := n.Params["duration_ms"].(float64); ok && ms >= 0 {
		delay = time.Duration(ms) * time.Millisecond
	}
	return func(ctx context.Context, st *dag.State) (any, error) {
		if err := resilience.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		if fail, _ := n.Params["fail"].(bool); fail || strings.HasPrefix(n.Script, "fail") {
			return nil, fmt.Errorf("script %s exited with status 1", n.Script)
		}
		out := scriptOutput{Script: n.Script, Records: recordsPerScript}
		for _, dep := range n.DependsOn {
			if up, err := dag.Read(st, dag.Output[scriptOutput](dep)); err == nil {
				out.Records += up.Records
			}
		}
		return out, nil
	}
}
