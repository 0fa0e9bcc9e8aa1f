package console

import (
	"context"
	"encoding/json"

	"github.com/ylai/autoplatform/auth"
	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/validation"
)

// Features is the caller's role and the dashboard features it unlocks.
type Features struct {
	Role     auth.Role `json:"role"`
	Features []string  `json:"features"`
}

// CanRun reports whether script execution is unlocked.
func (f Features) CanRun() bool { return auth.CanRun(f.Features) }

// Features fetches the dashboard feature list for the current token.
func (c *Console) Features(ctx context.Context) (Features, error) {
	return httpclient.GetJSON[Features](ctx, c.client, PathFeatures)
}

// Scripts lists runnable scripts. It prefers /scripts and falls back to
// /api/modules; both may answer a bare list or {scripts: [...]}.
func (c *Console) Scripts(ctx context.Context) ([]string, error) {
	env, err := c.client.Get(ctx, PathScripts)
	if err == nil {
		if names, ok := decodeNames(env); ok {
			return names, nil
		}
	}
	c.log.Debug("falling back to module list", logger.Fields(logger.FieldPath, PathModules))
	env, err = c.client.Get(ctx, PathModules)
	if err != nil {
		return nil, err
	}
	names, ok := decodeNames(env)
	if !ok {
		return nil, errors.Envelope(env.Code, "module list has an unexpected shape")
	}
	return names, nil
}

func decodeNames(env *httpclient.Envelope) ([]string, bool) {
	var list []string
	if json.Unmarshal(env.Data, &list) == nil && list != nil {
		return list, true
	}
	var obj struct {
		Scripts []string `json:"scripts"`
		Modules []string `json:"modules"`
	}
	if json.Unmarshal(env.Data, &obj) != nil {
		return nil, false
	}
	switch {
	case obj.Scripts != nil:
		return obj.Scripts, true
	case obj.Modules != nil:
		return obj.Modules, true
	}
	return nil, false
}

// RunRequest starts a single script.
type RunRequest struct {
	Name   string         `json:"name" validate:"required"`
	Params map[string]any `json:"params"`
}

// RunScript posts req to /api/run and returns the decoded response body.
func (c *Console) RunScript(ctx context.Context, req RunRequest) (map[string]any, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	env, err := c.client.Post(ctx, PathRun, req)
	if err != nil {
		return nil, err
	}
	c.log.Info("script started", logger.Fields("script", req.Name))
	out, err := httpclient.Decode[map[string]any](env)
	if err != nil {
		// Some backends answer {code: 0} with no data.
		return map[string]any{}, nil
	}
	return out, nil
}

// SchedulerConfig is the pipeline scheduler setting.
type SchedulerConfig struct {
	MaxConcurrentPipelines int `json:"max_concurrent_pipelines" validate:"min=1"`
}

// DefaultMaxConcurrentPipelines is used when the backend omits the value.
const DefaultMaxConcurrentPipelines = 2

func (c *Console) SchedulerConfig(ctx context.Context) (SchedulerConfig, error) {
	cfg, err := httpclient.GetJSON[SchedulerConfig](ctx, c.client, PathScheduler)
	if err != nil {
		return SchedulerConfig{}, err
	}
	if cfg.MaxConcurrentPipelines <= 0 {
		cfg.MaxConcurrentPipelines = DefaultMaxConcurrentPipelines
	}
	return cfg, nil
}

// SetSchedulerConfig stores cfg and returns the backend's resulting config.
// Values below 1 are raised to 1.
func (c *Console) SetSchedulerConfig(ctx context.Context, cfg SchedulerConfig) (SchedulerConfig, error) {
	cfg.MaxConcurrentPipelines = max(1, cfg.MaxConcurrentPipelines)
	out, err := httpclient.PostJSON[SchedulerConfig](ctx, c.client, PathScheduler, cfg)
	if err != nil {
		return SchedulerConfig{}, err
	}
	if out.MaxConcurrentPipelines <= 0 {
		out.MaxConcurrentPipelines = cfg.MaxConcurrentPipelines
	}
	return out, nil
}

// Policy is the global execution policy.
type Policy struct {
	Level int `json:"policy_level"`
}

func (c *Console) Policy(ctx context.Context) (Policy, error) {
	return httpclient.GetJSON[Policy](ctx, c.client, PathPolicyGet)
}

// SetPolicy changes the global policy level. Roles below admin are refused
// before any request is made.
func (c *Console) SetPolicy(ctx context.Context, role auth.Role, level int) (int, error) {
	if !auth.CanSetPolicy(role) {
		return 0, errors.Forbidden("changing the policy level requires admin")
	}
	env, err := c.client.Post(ctx, PathPolicySet, map[string]int{"level": level})
	if err != nil {
		return 0, err
	}
	resp, err := httpclient.DecodeRaw[struct {
		Level *int `json:"level"`
	}](env)
	if err != nil || resp.Level == nil {
		return level, nil
	}
	c.log.Info("policy level set", logger.Fields("level", *resp.Level))
	return *resp.Level, nil
}

type suggestion struct {
	Result json.RawMessage `json:"result"`
	Data   json.RawMessage `json:"data"`
}

// SuggestPipeline asks the AI endpoint for a pipeline matching prompt and
// imports the answer into a new graph. The answer may be an editor export
// or a run payload; nodes without positions are laid out by the importer.
func (c *Console) SuggestPipeline(ctx context.Context, prompt string, opts ...pipeline.Option) (*pipeline.Graph, error) {
	if prompt == "" {
		return nil, errors.MissingField("prompt")
	}
	env, err := c.client.Post(ctx, PathAIPipeline, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	s, err := httpclient.DecodeRaw[suggestion](env)
	if err != nil {
		return nil, err
	}
	doc := s.Result
	if len(doc) == 0 || string(doc) == "null" {
		doc = s.Data
	}
	if len(doc) == 0 || string(doc) == "null" {
		return nil, errors.Envelope(env.Code, "AI answer carried no pipeline")
	}
	// Some models answer with the document as a JSON string.
	var text string
	if json.Unmarshal(doc, &text) == nil {
		doc = json.RawMessage(text)
	}

	g := pipeline.New(opts...)
	if err := g.ImportJSON(doc); err != nil {
		return nil, err
	}
	c.log.Info("pipeline suggested", logger.Fields("nodes", g.Len()))
	return g, nil
}
