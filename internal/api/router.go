package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crewdeck-platform/crewdeck/internal/database"
	mw "github.com/crewdeck-platform/crewdeck/internal/middleware"
	inats "github.com/crewdeck-platform/crewdeck/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Account handlers
	Me         http.HandlerFunc
	ChangePlan http.HandlerFunc

	// Quota handlers
	QuotaStatus        http.HandlerFunc
	QuotaCheck         http.HandlerFunc
	ResourceQuota      http.HandlerFunc
	ResourceQuotaCheck http.HandlerFunc

	// Agent handlers
	CreateAgent              http.HandlerFunc
	ListAgents               http.HandlerFunc
	GetAgent                 http.HandlerFunc
	UpdateAgent              http.HandlerFunc
	DeleteAgent              http.HandlerFunc
	AgentOwnershipMiddleware func(http.Handler) http.Handler

	// Container handlers
	CreateContainer              http.HandlerFunc
	ListContainers               http.HandlerFunc
	GetContainer                 http.HandlerFunc
	DeleteContainer              http.HandlerFunc
	ContainerOwnershipMiddleware func(http.Handler) http.Handler

	// Message handlers
	SendMessage  http.HandlerFunc
	ListMessages http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler

	// API-call metering middleware
	APIQuotaMiddleware func(http.Handler) http.Handler

	// Dispatcher pool health
	DispatcherHealthy func() bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB, NATS, dispatcher
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":     "healthy",
			"database":   "healthy",
			"nats":       "healthy",
			"dispatcher": "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		if h.DispatcherHealthy != nil {
			if !h.DispatcherHealthy() {
				health["dispatcher"] = "saturated"
				health["status"] = "degraded"
			}
		} else {
			health["dispatcher"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes — every call here is metered against the
		// rolling API-call quota.
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			if h.APIQuotaMiddleware != nil {
				r.Use(h.APIQuotaMiddleware)
			}

			// Account routes
			r.Route("/account", func(r chi.Router) {
				r.Get("/", h.Me)
				r.Put("/plan", h.ChangePlan)
			})

			// Quota routes
			r.Route("/quota", func(r chi.Router) {
				r.Get("/", h.QuotaStatus)
				r.Post("/check", h.QuotaCheck)
				r.Get("/resources", h.ResourceQuota)
				r.Post("/resources/check", h.ResourceQuotaCheck)
			})

			// Agent routes
			r.Route("/agents", func(r chi.Router) {
				r.Post("/", h.CreateAgent)
				r.Get("/", h.ListAgents)

				r.Route("/{agentID}", func(r chi.Router) {
					r.Use(h.AgentOwnershipMiddleware)
					r.Get("/", h.GetAgent)
					r.Put("/", h.UpdateAgent)
					r.Delete("/", h.DeleteAgent)
				})
			})

			// Container routes
			r.Route("/containers", func(r chi.Router) {
				r.Post("/", h.CreateContainer)
				r.Get("/", h.ListContainers)

				r.Route("/{containerID}", func(r chi.Router) {
					r.Use(h.ContainerOwnershipMiddleware)
					r.Get("/", h.GetContainer)
					r.Delete("/", h.DeleteContainer)
				})
			})

			// Message routes
			r.Route("/messages", func(r chi.Router) {
				r.Post("/", h.SendMessage)
				r.Get("/", h.ListMessages)
			})
		})
	})

	return r
}
