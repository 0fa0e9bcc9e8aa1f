package mockbackend

import (
	"context"
	"embed"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ylai/autoplatform/auth/jwt"
	"github.com/ylai/autoplatform/auth/password"
	"github.com/ylai/autoplatform/component"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/runner"
	"github.com/ylai/autoplatform/server"
	"github.com/ylai/autoplatform/server/middleware"
	"github.com/ylai/autoplatform/sse"
	"github.com/ylai/autoplatform/storage"
)

//go:embed docs/*.md
var docsFS embed.FS

// Backend is an in-process stand-in for the automation backend. It speaks
// the same HTTP, SSE and WebSocket protocol as the real service.
type Backend struct {
	cfg      Config
	srv      *server.Server
	users    *Users
	tokens   *jwt.Service
	tasks    *Tasks
	hub      *sse.Component
	store    storage.Store
	metrics  *observability.Metrics
	accounts []Account
	upgrader websocket.Upgrader
	log      *logger.Logger
	started  time.Time

	// PingInterval paces WebSocket keepalives.
	PingInterval time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
}

var (
	_ component.Component   = (*Backend)(nil)
	_ component.Describable = (*Backend)(nil)
)

// Option configures a Backend.
type Option func(*Backend)

// WithStore persists the scheduler and policy settings. Defaults to memory.
func WithStore(s storage.Store) Option {
	return func(b *Backend) { b.store = s }
}

// WithMetrics records pipeline runs and node statuses.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// WithAccounts replaces DefaultAccounts.
func WithAccounts(accounts []Account) Option {
	return func(b *Backend) { b.accounts = accounts }
}

// New builds a backend. Nothing runs until Start.
func New(cfg Config, opts ...Option) (*Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{
		cfg:          cfg,
		accounts:     DefaultAccounts,
		log:          logger.Get("mockbackend"),
		started:      time.Now(),
		PingInterval: 30 * time.Second,
		quit:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The console is served from another origin in dev.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = storage.NewMemory()
	}

	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.BcryptCost})
	if err != nil {
		return nil, err
	}
	if b.users, err = NewUsers(hasher, b.accounts); err != nil {
		return nil, err
	}
	if b.tokens, err = jwt.NewService(&jwt.Config{Secret: cfg.JWTSecret, Issuer: "backend-mock"}); err != nil {
		return nil, err
	}

	limit := cfg.MaxConcurrentPipelines
	if saved, ok, _ := storage.GetJSON[int](context.Background(), b.store, keyScheduler); ok {
		limit = saved
	}
	b.tasks = NewTasks(limit, cfg.NodeDelay, b.metrics)
	b.hub = sse.NewComponent("/api/sse/logs")

	scfg := server.Config{Host: cfg.Host, Port: cfg.Port}
	scfg.ApplyDefaults()
	b.srv = server.New(scfg, b.log)
	b.srv.ApplyMiddleware()
	b.routes()
	return b, nil
}

func (b *Backend) routes() {
	e := b.srv.Engine()
	e.GET("/health", b.health)
	e.POST("/api/auth/login", b.login)
	e.GET("/api/modules", b.modules)
	e.GET("/api/status", b.status)
	e.GET("/scripts", b.scripts)
	e.GET("/api/docs/:id", b.doc)
	e.GET("/api/policy/get", b.policy)
	e.GET("/api/scheduler/config", b.schedulerConfig)
	e.POST("/api/pipeline/validate", b.validatePipeline)
	e.POST("/ai/pipeline", b.suggestPipeline)

	reports := e.Group("", middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: 120}))
	reports.POST("/api/js-error", b.jsError)
	reports.POST("/api/js-console", b.jsConsole)

	authed := e.Group("", middleware.Auth(middleware.AuthConfig{
		TokenValidator: b.validateToken,
		QueryParam:     "token",
	}))
	authed.POST("/api/run", b.runScript)
	authed.GET("/api/sse/logs", sse.Handler(b.hub.Hub(), "logs"))
	authed.GET("/api/dashboard/features", b.features)
	authed.POST("/api/pipeline/run", b.runPipeline(runner.EngineWS))
	authed.POST("/api/pipeline/simple/run", b.runPipeline(runner.EngineSimple))
	authed.GET("/ws/pipeline/:id", b.taskStream)
	authed.GET("/api/pipeline/simple/ws/:id", b.taskStream)

	admin := authed.Group("", middleware.RequireRole("admin", "superadmin"))
	admin.POST("/api/scheduler/config", b.setSchedulerConfig)
	admin.POST("/api/policy/set", b.setPolicy)
}

func (b *Backend) validateToken(token string) (map[string]interface{}, error) {
	claims, err := b.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"sub": claims.Username(), middleware.ClaimRole: claims.Role}, nil
}

// Handler returns the root handler, for httptest servers.
func (b *Backend) Handler() http.Handler { return b.srv.Handler() }

// Server returns the underlying HTTP server.
func (b *Backend) Server() *server.Server { return b.srv }

// Tasks exposes the pipeline runner.
func (b *Backend) Tasks() *Tasks { return b.tasks }

// Hub is the log stream hub.
func (b *Backend) Hub() *sse.Hub { return b.hub.Hub() }

func (b *Backend) Name() string { return "mockbackend" }

// Start runs the log stream and binds the HTTP port.
func (b *Backend) Start(ctx context.Context) error {
	if err := b.startWorkers(ctx); err != nil {
		return err
	}
	if err := b.srv.Start(ctx); err != nil {
		_ = b.stopWorkers(ctx)
		return err
	}
	b.log.Info("mock backend listening", logger.Fields("addr", b.srv.Addr()))
	return nil
}

// Stop closes streams, cancels running pipelines and shuts the server down.
func (b *Backend) Stop(ctx context.Context) error {
	err := b.srv.Stop(ctx)
	if werr := b.stopWorkers(ctx); err == nil {
		err = werr
	}
	return err
}

func (b *Backend) Health(context.Context) component.Health {
	return component.Health{Name: b.Name(), Status: component.StatusHealthy, Message: b.srv.Addr()}
}

func (b *Backend) Describe() component.Description {
	return component.Description{Name: "Mock backend", Type: "http", Details: b.srv.Addr(), Port: b.cfg.Port}
}

// Routes lists the HTTP routes for the startup summary.
func (b *Backend) Routes() []component.Route {
	return server.NewComponent(b.Name(), b.srv).Routes()
}

func (b *Backend) startWorkers(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	if err := b.hub.Start(ctx); err != nil {
		return err
	}
	ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		streamLogs(ctx, b.hub.Hub(), b.cfg.LogInterval)
	}()
	b.running = true
	return nil
}

func (b *Backend) stopWorkers(ctx context.Context) error {
	b.quitOnce.Do(func() { close(b.quit) })
	b.mu.Lock()
	running, cancel := b.running, b.cancel
	b.running = false
	b.mu.Unlock()

	b.tasks.Close()
	if !running {
		return nil
	}
	cancel()
	b.wg.Wait()
	return b.hub.Stop(ctx)
}
