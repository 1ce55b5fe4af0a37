package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/crewdeck-platform/crewdeck/internal/accounts"
	"github.com/crewdeck-platform/crewdeck/internal/agents"
	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/auth"
	"github.com/crewdeck-platform/crewdeck/internal/config"
	"github.com/crewdeck-platform/crewdeck/internal/containers"
	"github.com/crewdeck-platform/crewdeck/internal/database"
	"github.com/crewdeck-platform/crewdeck/internal/messages"
	"github.com/crewdeck-platform/crewdeck/internal/middleware"
	inats "github.com/crewdeck-platform/crewdeck/internal/nats"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
	iredis "github.com/crewdeck-platform/crewdeck/internal/redis"
	"github.com/crewdeck-platform/crewdeck/internal/resources"
	"github.com/crewdeck-platform/crewdeck/internal/server"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
	"github.com/crewdeck-platform/crewdeck/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	publisher := inats.NewPublisher(natsClient.JetStream())

	// Quota engines
	catalog := plan.NewCatalog()
	accountRepo := accounts.NewRepository(pool)
	planResolver := accounts.NewPlanResolver(accountRepo)

	usageStore := usage.NewStore(pool)
	quotaSvc := usage.NewService(usageStore, planResolver, catalog)
	quotaSvc.SetDenialSink(publisher)

	resourceStore := resources.NewStore(pool)
	resourceSvc := resources.NewService(resourceStore, planResolver, catalog)

	// Accounts
	accountSvc := accounts.NewService(accountRepo, quotaSvc, plan.Tier(cfg.Quota.DefaultPlan))
	accountHandler := accounts.NewHandler(accountSvc)

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	authHandler := auth.NewHandler(authSvc, accountSvc)

	// Quota handlers
	quotaHandler := usage.NewHandler(quotaSvc)
	resourceHandler := resources.NewHandler(resourceSvc)

	// Agents
	agentRepo := agents.NewRepository(pool)
	agentSvc := agents.NewService(agentRepo, quotaSvc)
	agentHandler := agents.NewHandler(agentSvc)

	// Containers
	containerRepo := containers.NewRepository(pool)
	containerSvc := containers.NewService(containerRepo, quotaSvc, resourceSvc, publisher)
	containerHandler := containers.NewHandler(containerSvc)

	// Messages
	messageRepo := messages.NewRepository(pool)
	messageSvc := messages.NewService(messageRepo, quotaSvc, publisher)
	messageHandler := messages.NewHandler(messageSvc)

	// Dispatch worker
	consumers := inats.NewConsumerManager(natsClient.JetStream())
	dispatcher := worker.NewDispatcher(consumers, messageSvc, cfg.Worker.Concurrency)
	go func() {
		if err := dispatcher.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("message dispatcher stopped", "error", err)
		}
	}()

	// Proactive reset sweep
	sweeper := usage.NewSweeper(usageStore, publisher, cfg.Quota.SweepInterval)
	go sweeper.Start(ctx)

	// Auth endpoint rate limiter
	authLimiter := middleware.NewRateLimiter(redisClient, 20, time.Minute)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:         accountHandler.Me,
		ChangePlan: accountHandler.ChangePlan,

		QuotaStatus:        quotaHandler.Status,
		QuotaCheck:         quotaHandler.Check,
		ResourceQuota:      resourceHandler.Get,
		ResourceQuotaCheck: resourceHandler.Check,

		CreateAgent:              agentHandler.Create,
		ListAgents:               agentHandler.List,
		GetAgent:                 agentHandler.Get,
		UpdateAgent:              agentHandler.Update,
		DeleteAgent:              agentHandler.Delete,
		AgentOwnershipMiddleware: agentHandler.OwnershipMiddleware,

		CreateContainer:              containerHandler.Create,
		ListContainers:               containerHandler.List,
		GetContainer:                 containerHandler.Get,
		DeleteContainer:              containerHandler.Delete,
		ContainerOwnershipMiddleware: containerHandler.OwnershipMiddleware,

		SendMessage:  messageHandler.Send,
		ListMessages: messageHandler.List,

		AuthMiddleware:     auth.Middleware(authSvc),
		APIQuotaMiddleware: usage.APIQuota(quotaSvc),

		DispatcherHealthy: dispatcher.Pool().Healthy,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
