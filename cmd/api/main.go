package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/curasoft/emr-assist/internal/api/router"
	"github.com/curasoft/emr-assist/internal/assistant"
	appconfig "github.com/curasoft/emr-assist/internal/config"
	"github.com/curasoft/emr-assist/internal/conversation"
	"github.com/curasoft/emr-assist/internal/emr/rest"
	"github.com/curasoft/emr-assist/internal/favorites"
	"github.com/curasoft/emr-assist/internal/http/handlers"
	httpmiddleware "github.com/curasoft/emr-assist/internal/http/middleware"
	"github.com/curasoft/emr-assist/internal/notify"
	"github.com/curasoft/emr-assist/internal/observability/metrics"
	"github.com/curasoft/emr-assist/internal/sessions"
	"github.com/curasoft/emr-assist/internal/webchat"
	"github.com/curasoft/emr-assist/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting emr-assist API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	gateway, err := rest.New(rest.Config{
		BaseURL: cfg.EMRBaseURL,
		APIKey:  cfg.EMRAPIKey,
		OrgID:   cfg.OrgID,
		Timeout: cfg.EMRTimeout,
	})
	if err != nil {
		logger.Error("failed to create EMR client", "error", err)
		os.Exit(1)
	}

	// Conversation state store: Redis by default, in-memory for local runs.
	var store conversation.Store
	var favoritesKV favorites.KV
	if cfg.UseMemoryStore {
		store = conversation.NewMemoryStore()
		favoritesKV = favorites.NewMemoryKV()
	} else {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		store = conversation.NewRedisStore(redisClient, cfg.ConversationTTL, nil)
		favoritesKV = favorites.NewRedisKV(redisClient)
	}

	// Session analytics are optional; the engine treats recording as
	// best-effort either way.
	var recorder conversation.Recorder
	var statsHandler *handlers.AdminStatsHandler
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo := sessions.NewRepository(pool)
		recorder = repo
		statsHandler = handlers.NewAdminStatsHandler(repo, logger)
	}

	var emailSender notify.EmailSender
	if cfg.SendGridAPIKey != "" {
		emailSender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, cfg.SendGridFromName, logger)

	conversationMetrics := metrics.NewConversationMetrics(nil)

	engine := conversation.NewEngine(conversation.EngineConfig{
		Gateway:           gateway,
		Store:             store,
		Logger:            logger,
		Metrics:           conversationMetrics,
		Recorder:          recorder,
		Notifier:          notifier,
		BookingWindowDays: cfg.BookingWindowDays,
		DefaultDepartment: cfg.DefaultDept,
	})

	var freeform handlers.FreeformService
	if cfg.GeminiAPIKey != "" {
		gemini, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = gemini.Close() }()
		freeform = assistant.NewService(gemini, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, free-form chat will return fallback replies")
	}

	chatHandler := handlers.NewChatHandler(engine, freeform, conversationMetrics, logger)
	favoritesHandler := handlers.NewFavoritesHandler(favorites.NewService(favoritesKV), logger)
	webchatHandler := webchat.NewHandler(engine, freeform, nil, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		FavoritesHandler:   favoritesHandler,
		AdminStatsHandler:  statsHandler,
		WebchatHandler:     webchatHandler,
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: httpmiddleware.RateLimitPolicy{
			PerSecond: cfg.RateLimitPerSecond,
			Burst:     cfg.RateLimitBurst,
		},
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
