package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/agendadigital/agenda-platform/internal/api/router"
	"github.com/agendadigital/agenda-platform/internal/catalog"
	appconfig "github.com/agendadigital/agenda-platform/internal/config"
	"github.com/agendadigital/agenda-platform/internal/conversation"
	"github.com/agendadigital/agenda-platform/internal/http/handlers"
	"github.com/agendadigital/agenda-platform/internal/insights"
	"github.com/agendadigital/agenda-platform/internal/live"
	"github.com/agendadigital/agenda-platform/internal/messaging"
	"github.com/agendadigital/agenda-platform/internal/messaging/zapiclient"
	"github.com/agendadigital/agenda-platform/internal/notify"
	"github.com/agendadigital/agenda-platform/internal/observability/metrics"
	"github.com/agendadigital/agenda-platform/internal/scheduling"
	"github.com/agendadigital/agenda-platform/internal/stats"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting agenda-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry, err := cfg.Registry()
	if err != nil {
		logger.Error("failed to build tenant registry", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedMetrics := metrics.NewSchedulingMetrics(promRegistry)
	msgMetrics := metrics.NewMessagingMetrics(promRegistry)

	hub := live.NewHub(logger)
	defer hub.Close()

	treeStore := scheduling.NewRedisTreeStore(redisClient)
	schedSvc := scheduling.NewService(treeStore, logger, schedMetrics, hub)
	catalogSvc := catalog.NewService(treeStore, logger)

	var convStore *conversation.Store
	if pool != nil {
		convStore = conversation.NewStore(pool)
	}

	gateway := zapiclient.New(zapiclient.Config{
		BaseURL: cfg.GatewayBaseURL,
		Timeout: cfg.GatewayTimeout,
		Logger:  logger.Logger,
	})
	var msgSvc *messaging.Service
	if convStore != nil {
		msgSvc = messaging.NewService(gateway, convStore, logger, msgMetrics)
	} else {
		msgSvc = messaging.NewService(gateway, nil, logger, msgMetrics)
	}

	var (
		categorizer *insights.Categorizer
		analyzer    *insights.SourceAnalyzer
	)
	if cfg.GeminiAPIKey != "" {
		llm, err := insights.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = llm.Close() }()

		var client insights.LLMClient = llm
		if cfg.GeminiBackupModelID != "" {
			backup, err := insights.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiBackupModelID)
			if err != nil {
				logger.Error("failed to create backup gemini client", "error", err)
				os.Exit(1)
			}
			defer func() { _ = backup.Close() }()
			client = insights.NewFallbackClient(llm, backup, logger.Logger)
		}
		categorizer = insights.NewCategorizer(client, logger)
		analyzer = insights.NewSourceAnalyzer(client, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set; observation labels and source analysis disabled")
	}

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}
	notifier := notify.NewService(msgSvc, emailSender, logger)

	statsSvc := stats.NewService(schedSvc, catalogSvc, promRegistry, logger)

	var conversationsHandler *handlers.ConversationsHandler
	if convStore != nil {
		var analyzerDep handlers.SourceAnalyzer
		if analyzer != nil {
			analyzerDep = analyzer
		}
		conversationsHandler = handlers.NewConversationsHandler(convStore, msgSvc, analyzerDep, logger)
	} else {
		logger.Warn("DATABASE_URL not set; conversation endpoints disabled")
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Registry:           registry,
		Appointments:       handlers.NewAppointmentsHandler(schedSvc, catalogSvc, notifier, categorizer, logger),
		Catalog:            handlers.NewCatalogHandler(catalogSvc, logger),
		Conversations:      conversationsHandler,
		Stats:              handlers.NewStatsHandler(statsSvc, logger),
		LiveHandler:        hub.Handler(),
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		StaffAuthSecret:    cfg.StaffJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
