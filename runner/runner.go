package runner

import (
	"context"
	"fmt"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/pipeline"
)

// Runner submits pipeline payloads and opens watchers on the resulting tasks.
type Runner struct {
	client *httpclient.Client
	engine Engine
	log    *logger.Logger
}

// New creates a Runner. An empty engine means ws.
func New(client *httpclient.Client, engine Engine) *Runner {
	if engine == "" {
		engine = EngineWS
	}
	return &Runner{client: client, engine: engine, log: logger.Get("runner")}
}

// Engine returns the execution path runs are submitted to.
func (r *Runner) Engine() Engine { return r.engine }

type runResponse struct {
	TaskID      string `json:"task_id"`
	TaskIDCamel string `json:"taskId"`
}

func (r runResponse) id() string {
	if r.TaskID != "" {
		return r.TaskID
	}
	return r.TaskIDCamel
}

// RunAll posts p to the engine's run endpoint and returns the task id.
func (r *Runner) RunAll(ctx context.Context, p pipeline.Payload) (string, error) {
	env, err := r.client.Post(ctx, r.engine.RunPath(), p)
	if err != nil {
		r.log.Warn("run request failed", logger.Fields(
			logger.FieldEngine, string(r.engine), logger.FieldError, err.Error()))
		return "", err
	}
	resp, _ := httpclient.Decode[runResponse](env)
	taskID := resp.id()
	if taskID == "" {
		// The pipeline backend answers {code, task_id, ws_url} with no data.
		raw, err := httpclient.DecodeRaw[runResponse](env)
		if err != nil {
			return "", err
		}
		taskID = raw.id()
	}
	if taskID == "" {
		return "", errors.ExternalServiceError("pipeline run", fmt.Errorf("response carried no task id"))
	}
	r.log.Info("pipeline submitted", logger.Fields(
		logger.FieldTaskID, taskID, logger.FieldEngine, string(r.engine), "nodes", len(p.Nodes)))
	return taskID, nil
}

// Run validates g, submits it and returns a TaskState seeded with its nodes.
// Statuses on g are reset only after the backend accepted the run, so a
// failed submit leaves g as it was.
func (r *Runner) Run(ctx context.Context, g *pipeline.Graph, maxConcurrency int) (*TaskState, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	p := g.BuildDagPayload()
	p.MaxConcurrency = maxConcurrency

	taskID, err := r.RunAll(ctx, p)
	if err != nil {
		return nil, err
	}
	g.ResetStatuses()
	st := NewTaskState(taskID, g.IDs()...)
	st.AppendLog(fmt.Sprintf("task %s started on %s engine", taskID, r.engine))
	return st, nil
}

// Watch creates a watcher for taskID using the client's base URL and token.
// The watcher is not started.
func (r *Runner) Watch(taskID string, st *TaskState, opts ...WatcherOption) *Watcher {
	cfg := WatcherConfig{
		BaseURL: r.client.BaseURL(),
		Engine:  r.engine,
		Token:   r.client.Token,
	}
	if st != nil {
		opts = append([]WatcherOption{WithTaskState(st)}, opts...)
	}
	return NewWatcher(cfg, taskID, opts...)
}
