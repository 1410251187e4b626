package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/leasing-ai-platform/internal/admin"
	"github.com/wolfman30/leasing-ai-platform/internal/api/router"
	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/conversation"
	httpmiddleware "github.com/wolfman30/leasing-ai-platform/internal/http/middleware"
	"github.com/wolfman30/leasing-ai-platform/internal/leads"
	"github.com/wolfman30/leasing-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/leasing-ai-platform/internal/property"
	"github.com/wolfman30/leasing-ai-platform/internal/webchat"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// Options supplies process-level dependencies the config cannot describe.
type Options struct {
	Logger *logging.Logger
	// AWS backs the dynamodb session store, Bedrock, SES, SQS and s3:// property seeds.
	AWS *aws.Config
	// Registry receives the chat metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// App is the fully wired chat service.
type App struct {
	Config       *appconfig.Config
	Orchestrator *conversation.Orchestrator
	Sessions     conversation.SessionStore
	Leads        leads.Repository
	Properties   property.Store
	Sync         *SyncStack
	Metrics      *metrics.ChatMetrics
	RateLimiter  *httpmiddleware.RateLimiter

	handler http.Handler
	resources
}

// resources tracks connections opened during bootstrap.
type resources struct {
	logger  *logging.Logger
	closers []io.Closer
	cleanup []func()
}

// New builds every component named by cfg. Call Close when done.
func New(ctx context.Context, cfg *appconfig.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	app := &App{Config: cfg, resources: resources{logger: logger}}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	clients, checks, err := app.openClients(ctx, cfg, opts.AWS)
	if err != nil {
		return nil, err
	}

	app.Metrics = metrics.NewChatMetrics(registry)

	if app.Sessions, err = BuildSessionStore(cfg, clients); err != nil {
		return nil, err
	}
	if app.Leads, err = BuildLeadsRepository(cfg, clients); err != nil {
		return nil, err
	}
	if app.Properties, err = BuildPropertyStore(ctx, cfg, clients, logger); err != nil {
		return nil, err
	}
	rules, err := BuildRules(cfg)
	if err != nil {
		return nil, err
	}
	llm, llmClosers, err := BuildLLMClient(ctx, cfg, opts.AWS, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, llmClosers...)

	app.Sync, err = BuildSyncStack(cfg, SyncDeps{
		Sessions: app.Sessions,
		Leads:    app.Leads,
		Redis:    clients.Redis,
		AWS:      opts.AWS,
		Metrics:  app.Metrics,
	}, logger)
	if err != nil {
		return nil, err
	}

	orchestratorOpts := []conversation.OrchestratorOption{
		conversation.WithRules(rules),
		conversation.WithLeadRepository(app.Leads),
		conversation.WithSyncDispatcher(app.Sync.Dispatcher),
		conversation.WithPropertyConfig(app.Properties),
		conversation.WithMetrics(app.Metrics),
		conversation.WithLogger(logger),
		conversation.WithCompletion("", cfg.LLMMaxTokens, cfg.CompletionTimeout),
		conversation.WithLeadSource(cfg.LeadSource, cfg.CompanyID, cfg.PropertyInterest),
	}
	propertyName := property.DefaultConfig().PropertyName
	if current, err := app.Properties.Get(ctx); err == nil {
		propertyName = current.PropertyName
	}
	if notifier := BuildLeadNotifier(cfg, opts.AWS, propertyName, logger); notifier != nil {
		orchestratorOpts = append(orchestratorOpts, conversation.WithLeadNotifier(notifier))
	}
	app.Orchestrator = conversation.NewOrchestrator(app.Sessions, llm, orchestratorOpts...)

	if cfg.ChatRateLimit > 0 {
		app.RateLimiter = httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
	}

	defaultInterest := cfg.PropertyInterest
	if defaultInterest == "" {
		defaultInterest = propertyName
	}
	app.handler = router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        conversation.NewHandler(app.Orchestrator, logger),
		WebChatHandler:     webchat.NewHandler(app.Orchestrator, app.Sessions, logger),
		LeadsHandler:       leads.NewHandler(app.Leads, defaultInterest, logger),
		PropertyHandler:    property.NewHandler(app.Properties, logger),
		AdminLogin:         adminLogin(cfg, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRateLimiter:    app.RateLimiter,
		HealthChecks:       checks,
	})

	ok = true
	return app, nil
}

// adminLogin is nil unless an operator account and signing secret are configured.
func adminLogin(cfg *appconfig.Config, logger *logging.Logger) *admin.LoginHandler {
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" || cfg.AdminJWTSecret == "" {
		return nil
	}
	return admin.NewLoginHandler(admin.Credentials{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
	}, cfg.AdminJWTSecret, cfg.AdminTokenTTL, logger)
}

func (a *resources) openClients(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config) (Clients, map[string]router.HealthCheck, error) {
	clients := Clients{AWS: awsCfg}
	checks := map[string]router.HealthCheck{}

	redisRequired := cfg.SessionBackend == "redis"
	if redisClient := BuildRedisClient(ctx, cfg, a.logger, true); redisClient != nil {
		clients.Redis = redisClient
		a.closers = append(a.closers, redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else if redisRequired {
		return clients, nil, fmt.Errorf("bootstrap: session backend redis needs a reachable REDIS_ADDR")
	}

	if cfg.SessionBackend == "postgres" {
		db, err := BuildSQLDB(ctx, cfg)
		if err != nil {
			return clients, nil, err
		}
		clients.SQL = db
		a.closers = append(a.closers, db)
		checks["postgres"] = db.PingContext
	}
	if cfg.LeadsBackend == "postgres" {
		pool, err := BuildPgxPool(ctx, cfg)
		if err != nil {
			return clients, nil, err
		}
		clients.Pool = pool
		a.cleanup = append(a.cleanup, pool.Close)
		if _, exists := checks["postgres"]; !exists {
			checks["postgres"] = pool.Ping
		}
	}
	return clients, checks, nil
}

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Start runs background loops until ctx is done: the rate limiter sweep and, when the
// sync queue lives in process, the sync worker.
func (a *App) Start(ctx context.Context) {
	if a.RateLimiter != nil {
		go a.RateLimiter.Run(ctx)
	}
	if a.Sync != nil && a.Sync.Worker != nil {
		a.Sync.Worker.Start(ctx)
	}
}

// Drain waits for in-flight lead alerts and background syncs. Call after the HTTP server stopped.
func (a *App) Drain() {
	if a.Orchestrator != nil {
		a.Orchestrator.Wait()
	}
	if a.Sync == nil {
		return
	}
	if a.Sync.Inline != nil {
		a.Sync.Inline.Wait()
	}
	if a.Sync.Worker != nil {
		a.Sync.Worker.Wait()
	}
}

// Close releases connections. It is safe to call more than once.
func (a *resources) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range a.cleanup {
		fn()
	}
	a.closers, a.cleanup = nil, nil
	return errors.Join(errs...)
}
