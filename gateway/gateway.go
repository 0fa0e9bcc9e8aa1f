package gateway

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ylai/autoplatform/console"
	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/module"
	"github.com/ylai/autoplatform/observability"
	"github.com/ylai/autoplatform/resilience"
	"github.com/ylai/autoplatform/server"
	"github.com/ylai/autoplatform/server/middleware"
	"github.com/ylai/autoplatform/ui"
	"github.com/ylai/autoplatform/version"
)

// Gateway serves the dashboard pages and proxies /api and /ws to the
// backend on a single port.
type Gateway struct {
	cfg      Config
	srv      *server.Server
	pages    *Pages
	pagesDir string
	registry *module.Registry
	console  *console.Console
	breaker  *resilience.CircuitBreaker
	metrics  *observability.Metrics
	log      *logger.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRegistry sets the modules rendered under /modules. Defaults to
// module.DefaultRegistry.
func WithRegistry(r *module.Registry) Option {
	return func(g *Gateway) { g.registry = r }
}

// WithMetrics records proxy metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger replaces the gateway logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// New builds a gateway from cfg. Defaults are applied before validation.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:      cfg,
		pagesDir: filepath.Join(cfg.StaticDir, "pages"),
		log:      logger.Get("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = module.DefaultRegistry()
	}
	g.pages = NewPages(g.pagesDir, cfg.AssetVersion)

	client, err := httpclient.New(httpclient.Config{
		BaseURL:    cfg.Target(),
		Timeout:    10 * time.Second,
		RetryTimes: -1,
	})
	if err != nil {
		return nil, err
	}
	g.console = console.New(client)

	g.breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:        "backend",
		MaxFailures: cfg.BreakerFailures,
		Cooldown:    cfg.BreakerCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			g.log.Warn("backend circuit changed", logger.Fields(
				"breaker", name, "from", from.String(), "to", to.String()))
		},
	})
	api, err := NewProxy("/api", cfg.Target(), g.breaker, g.metrics)
	if err != nil {
		return nil, err
	}
	ws, err := NewProxy("/ws", cfg.WSProto+"://"+cfg.APIHost+":"+strconv.Itoa(cfg.APIPort), g.breaker, g.metrics)
	if err != nil {
		return nil, err
	}
	if cfg.APITarget != "" {
		ws = api
	}

	scfg := server.Config{Host: cfg.Host, Port: cfg.Port}
	scfg.ApplyDefaults()
	g.srv = server.New(scfg, g.log)
	g.srv.ApplyMiddleware()
	if cfg.Mode == ModeDev {
		g.srv.Engine().Use(g.contentSecurityPolicy())
	}

	proxyChain := middleware.Chain(middleware.RequestLogger(g.log.WithComponent("proxy")))
	g.srv.Handle("/api/", proxyChain(api))
	g.srv.Handle("/ws/", proxyChain(ws))
	g.routes()

	g.log.Info("gateway configured", logger.Fields(
		"mode", cfg.Mode, "target", cfg.Target(), "static_dir", cfg.StaticDir, "asset_version", cfg.AssetVersion))
	return g, nil
}

func (g *Gateway) routes() {
	e := g.srv.Engine()
	e.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/pages/index.html")
	})
	e.GET("/health", g.health)
	e.GET("/info", g.info)
	e.GET("/pages/*file", g.page)
	e.Static("/static", filepath.Join(g.cfg.StaticDir, "static"))
	e.GET("/modules", g.moduleIndex)
	e.GET("/modules/:name", g.modulePage)
	e.GET("/docs/:id", g.docPage)
}

// Config returns the effective configuration.
func (g *Gateway) Config() Config { return g.cfg }

// Server returns the underlying HTTP server.
func (g *Gateway) Server() *server.Server { return g.srv }

// Handler returns the root handler, for httptest servers.
func (g *Gateway) Handler() http.Handler { return g.srv.Handler() }

// Component runs the gateway under a component registry.
func (g *Gateway) Component() *server.Component {
	return server.NewComponent("gateway", g.srv)
}

// Breaker exposes the backend circuit breaker.
func (g *Gateway) Breaker() *resilience.CircuitBreaker { return g.breaker }

func (g *Gateway) contentSecurityPolicy() gin.HandlerFunc {
	csp := g.cfg.ContentSecurityPolicy()
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", csp)
		c.Next()
	}
}

func (g *Gateway) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"ts":        time.Now().UnixMilli(),
		"apiTarget": g.cfg.Target(),
		"proto":     g.cfg.APIProto,
		"host":      g.cfg.APIHost,
		"port":      strconv.Itoa(g.cfg.APIPort),
	})
}

type infoResponse struct {
	version.Info
	Mode         string `json:"mode"`
	AssetVersion string `json:"asset_version"`
	Circuit      string `json:"circuit"`
}

func (g *Gateway) info(c *gin.Context) {
	c.JSON(http.StatusOK, infoResponse{
		Info:         version.Get(),
		Mode:         g.cfg.Mode,
		AssetVersion: g.cfg.AssetVersion,
		Circuit:      g.breaker.State().String(),
	})
}

func (g *Gateway) page(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("file"), "/")
	if name == "" {
		c.Redirect(http.StatusFound, "/pages/index.html")
		return
	}
	if htmlName, redirect := HTMLName(name); redirect {
		target := "/pages/" + htmlName
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		c.Redirect(http.StatusFound, target)
		return
	}
	if path.Ext(name) != ".html" {
		c.File(filepath.Join(g.pagesDir, filepath.FromSlash(path.Clean("/"+name))))
		return
	}

	body, err := g.pages.Render(name)
	if err != nil {
		if os.IsNotExist(err) {
			server.RespondWithError(c, errors.NotFound("page", name))
			return
		}
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	g.writeHTML(c, body)
}

// moduleIndex lists the registered modules, ten per page.
func (g *Gateway) moduleIndex(c *gin.Context) {
	modules := g.registry.List()
	n, _ := strconv.Atoi(c.Query("page"))
	pg := ui.NewPage(n, ui.DefaultPageSize, len(modules))

	entries := make([]ModuleEntry, 0, pg.Size)
	for _, m := range modules[pg.Offset():min(pg.Offset()+pg.Size, len(modules))] {
		entries = append(entries, ModuleEntry{
			Name:   module.Name(m.ID()),
			Title:  m.Title(),
			Routes: len(m.Routes()),
		})
	}
	body, err := g.pages.RenderModule(ModulePage{
		Title:  "Modules",
		Name:   "modules",
		RootID: module.DefaultRootID,
		Body:   RenderModuleIndex(entries, pg),
	})
	if err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	g.writeHTML(c, body)
}

func (g *Gateway) modulePage(c *gin.Context) {
	name := c.Param("name")
	mounted := g.registry.MountOrPlaceholder(name, "", module.Options{
		Context: c.Request.Context(),
		Role:    c.Query("role"),
	})
	defer func() { _ = mounted.Dispose() }()

	title := module.Name(name)
	body := mounted.Root.HTML()
	if mounted.Module != nil {
		title = mounted.Module.Title()
	} else {
		// Placeholder: tell the user the module itself did not load.
		toasts := ui.NewToaster()
		toasts.Show("module "+module.Name(name)+" is unavailable", ui.ToastError, 0)
		body += toasts.Render()
	}
	page, err := g.pages.RenderModule(ModulePage{
		Title:  title,
		Name:   module.Name(name),
		RootID: mounted.Root.ID,
		Body:   body,
	})
	if err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	g.writeHTML(c, page)
}

// docPage renders a task document fetched from the backend. The caller's
// Authorization header is forwarded.
func (g *Gateway) docPage(c *gin.Context) {
	id := console.DocFile(c.Param("id"))
	var opts []httpclient.RequestOption
	if auth := c.GetHeader("Authorization"); auth != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", auth))
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	doc, err := g.console.Doc(ctx, id, opts...)
	if err != nil {
		switch {
		case httpclient.IsNotFound(err):
			server.RespondWithError(c, errors.NotFound("doc", id))
		case httpclient.IsUnauthorized(err):
			server.RespondWithError(c, errors.Unauthorized("login required"))
		default:
			server.RespondWithError(c, errors.BadGateway(g.cfg.Target(), err))
		}
		return
	}
	body, err := g.pages.RenderModule(ModulePage{Title: doc.ID, Name: "docs", RootID: "doc", Body: doc.HTML})
	if err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}
	g.writeHTML(c, body)
}

func (g *Gateway) writeHTML(c *gin.Context, body []byte) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}
