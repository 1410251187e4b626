package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wolfman30/leasing-ai-platform/internal/admin"
	"github.com/wolfman30/leasing-ai-platform/internal/conversation"
	httpmiddleware "github.com/wolfman30/leasing-ai-platform/internal/http/middleware"
	"github.com/wolfman30/leasing-ai-platform/internal/leads"
	"github.com/wolfman30/leasing-ai-platform/internal/property"
	"github.com/wolfman30/leasing-ai-platform/internal/webchat"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *conversation.Handler
	WebChatHandler     *webchat.Handler
	LeadsHandler       *leads.Handler
	PropertyHandler    *property.Handler
	AdminLogin         *admin.LoginHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// ChatRateLimiter throttles the public chat endpoints per client IP. Nil disables it.
	ChatRateLimiter *httpmiddleware.RateLimiter
	HealthChecks    map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         600,
		}))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ChatHandler != nil {
		r.Route("/chat", func(chat chi.Router) {
			if cfg.ChatRateLimiter != nil {
				chat.Use(cfg.ChatRateLimiter.Middleware)
			}
			cfg.ChatHandler.Routes(chat)
			if cfg.WebChatHandler != nil {
				chat.Get("/ws", cfg.WebChatHandler.HandleWebSocket)
			}
		})
	}

	if cfg.LeadsHandler != nil {
		r.Post("/leads/external", cfg.LeadsHandler.CreateExternalLead)
	}

	r.Route("/admin", func(ar chi.Router) {
		if cfg.AdminLogin != nil {
			login := http.Handler(http.HandlerFunc(cfg.AdminLogin.Login))
			if cfg.ChatRateLimiter != nil {
				login = cfg.ChatRateLimiter.Middleware(login)
			}
			ar.Method(http.MethodPost, "/login", login)
		}
		ar.Group(func(protected chi.Router) {
			protected.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.LeadsHandler != nil {
				cfg.LeadsHandler.AdminRoutes(protected)
			}
			if cfg.PropertyHandler != nil {
				cfg.PropertyHandler.Routes(protected)
			}
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
