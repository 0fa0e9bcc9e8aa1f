package mockbackend

import (
	"context"
	stderrors "errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ylai/autoplatform/auth"
	"github.com/ylai/autoplatform/console"
	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/runner"
	"github.com/ylai/autoplatform/server"
	"github.com/ylai/autoplatform/server/middleware"
	"github.com/ylai/autoplatform/storage"
	"github.com/ylai/autoplatform/validation"
)

// Storage keys of the persisted settings.
const (
	keyScheduler = "mockbackend:scheduler"
	keyPolicy    = "mockbackend:policy"
)

// Policy levels range from 0 (off) to 3 (strict).
const (
	minPolicyLevel = 0
	maxPolicyLevel = 3
)

// roleFeatures is the dashboard feature table per role.
var roleFeatures = map[auth.Role][]string{
	auth.RoleSuperadmin: {"recognize", "collect", "enum", "policy", "scheduler", "logs"},
	auth.RoleAdmin:      {"collect", "enum", "logs", "scheduler"},
	auth.RoleUser:       {"logs"},
}

func (b *Backend) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"ts":      time.Now().UnixMilli(),
		"service": "backend-mock",
		"port":    b.cfg.Port,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (b *Backend) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	role, err := b.users.Authenticate(req.Username, req.Password)
	if err != nil {
		b.log.Warn("login rejected", logger.Fields("username", req.Username))
		server.RespondWithError(c, err)
		return
	}
	token, err := b.tokens.Issue(req.Username, string(role))
	if err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	b.log.Info("login", logger.Fields("username", req.Username, "role", string(role)))
	server.RespondOK(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"role":         role,
		"expires_in":   int(b.tokens.TTL().Seconds()),
	})
}

func (b *Backend) modules(c *gin.Context) {
	c.JSON(http.StatusOK, []string{"demo", "status", "log"})
}

func (b *Backend) status(c *gin.Context) {
	md, err := fs.ReadFile(docsFS, "docs/status.md")
	if err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"uptime":   int(time.Since(b.started).Seconds()),
		"modules":  []string{"policy", "scheduler", "logs"},
		"ts":       time.Now().UnixMilli(),
		"markdown": string(md),
	})
}

func (b *Backend) scripts(c *gin.Context) {
	names := make([]string, len(pipeline.Templates))
	for i, t := range pipeline.Templates {
		names[i] = t.Script
	}
	server.RespondOK(c, gin.H{"scripts": names})
}

func (b *Backend) doc(c *gin.Context) {
	name := console.DocFile(c.Param("id"))
	md, err := fs.ReadFile(docsFS, "docs/"+name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			server.RespondWithError(c, errors.NotFound("doc", name))
			return
		}
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", md)
}

func (b *Backend) policyLevel(ctx context.Context) int {
	level, _, err := storage.GetJSON[int](ctx, b.store, keyPolicy)
	if err != nil {
		b.log.Warn("read policy level", logger.Fields(logger.FieldError, err.Error()))
	}
	return level
}

func (b *Backend) policy(c *gin.Context) {
	server.RespondOK(c, gin.H{
		"policy_level": b.policyLevel(c.Request.Context()),
		"version":      "mock-1",
		"rbac":         auth.RolePermissions,
		"features":     roleFeatures,
		"limits":       gin.H{"max_concurrent_pipelines": b.tasks.Limit()},
	})
}

type policyRequest struct {
	Level *int `json:"level" binding:"required"`
}

func (b *Backend) setPolicy(c *gin.Context) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.MissingField("level"))
		return
	}
	level := *req.Level
	if err := validation.New().Range("level", level, minPolicyLevel, maxPolicyLevel).Validate(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := storage.SetJSON(c.Request.Context(), b.store, keyPolicy, level); err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	b.log.Info("policy level set", logger.Fields("level", level, "by", c.GetString("sub")))
	c.JSON(http.StatusOK, gin.H{"code": 0, "level": level})
}

func (b *Backend) schedulerConfig(c *gin.Context) {
	server.RespondOK(c, console.SchedulerConfig{MaxConcurrentPipelines: b.tasks.Limit()})
}

func (b *Backend) setSchedulerConfig(c *gin.Context) {
	var req console.SchedulerConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	limit := b.tasks.SetLimit(req.MaxConcurrentPipelines)
	if err := storage.SetJSON(c.Request.Context(), b.store, keyScheduler, limit); err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	b.log.Info("scheduler limit set", logger.Fields("max_concurrent_pipelines", limit))
	server.RespondOK(c, console.SchedulerConfig{MaxConcurrentPipelines: limit})
}

func (b *Backend) features(c *gin.Context) {
	role := auth.Role(c.GetString(middleware.ClaimRole))
	features := roleFeatures[role]
	if features == nil {
		features = []string{}
	}
	server.RespondOK(c, console.Features{Role: role, Features: features})
}

func (b *Backend) runScript(c *gin.Context) {
	var req console.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	role := auth.Role(c.GetString(middleware.ClaimRole))
	if !auth.CanRun(roleFeatures[role]) {
		server.RespondWithError(c, errors.Forbidden("running scripts is not enabled for "+string(role)))
		return
	}
	b.log.Info("script run", logger.Fields("script", req.Name, "by", c.GetString("sub")))
	server.RespondOK(c, gin.H{"ok": true, "echo": req, "ts": time.Now().UnixMilli()})
}

func (b *Backend) runPipeline(engine runner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p pipeline.Payload
		if err := c.ShouldBindJSON(&p); err != nil {
			server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
			return
		}
		t, err := b.tasks.Submit(engine, p)
		if err != nil {
			server.RespondWithError(c, payloadError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "task_id": t.ID, "ws_url": engine.WSPath(t.ID)})
	}
}

func (b *Backend) validatePipeline(c *gin.Context) {
	var p pipeline.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := p.Validate(); err != nil {
		server.RespondWithError(c, payloadError(err))
		return
	}
	server.RespondOK(c, gin.H{"valid": true, "nodes": len(p.Nodes)})
}

// payloadError keeps the status of application errors: a cycle answers 422
// and a malformed document 400. Anything else is a 400.
func payloadError(err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	return errors.Validation(err.Error())
}

type suggestRequest struct {
	Prompt string `json:"prompt"`
}

// suggestPipeline answers with a canned graph: crawl, clean, then export to
// CSV when the prompt asks for it or save to the database otherwise.
func (b *Backend) suggestPipeline(c *gin.Context) {
	var req suggestRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Prompt) == "" {
		server.RespondWithError(c, errors.MissingField("prompt"))
		return
	}

	sink := "save_db"
	lower := strings.ToLower(req.Prompt)
	if strings.Contains(lower, "csv") || strings.Contains(req.Prompt, "导出") {
		sink = "export_csv"
	}
	g := pipeline.New()
	var prev string
	for i, script := range []string{"crawl_news", "clean_text", sink} {
		id, err := g.AddFromTemplate(templateFor(script), float64(80+i*220), 120)
		if err != nil {
			server.RespondWithError(c, errors.Internal(err))
			return
		}
		if prev != "" {
			if _, err := g.AddConnection(prev, id); err != nil {
				server.RespondWithError(c, errors.Internal(err))
				return
			}
		}
		prev = id
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "result": g.Export()})
}

func templateFor(script string) pipeline.Template {
	for _, t := range pipeline.Templates {
		if t.Script == script {
			return t
		}
	}
	return pipeline.Template{Label: script, Script: script, Category: pipeline.CategoryProcess}
}

func (b *Backend) jsError(c *gin.Context) {
	var rep console.ErrorReport
	if err := c.ShouldBindJSON(&rep); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	b.log.Warn("client error", logger.Fields(
		"source", rep.Source, "type", rep.Type, "file", rep.File, "line", rep.Line, "message", rep.Message))
	server.RespondMessage(c, "ok")
}

func (b *Backend) jsConsole(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	b.log.Debug("client console", logger.Fields("source", body["source"], "args", body["args"]))
	server.RespondMessage(c, "ok")
}
