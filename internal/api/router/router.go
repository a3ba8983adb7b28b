// Package router wires the HTTP surface: the conversational booking API,
// the web chat widget endpoints, favorites and the admin routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/curasoft/emr-assist/internal/http/handlers"
	httpmiddleware "github.com/curasoft/emr-assist/internal/http/middleware"
	"github.com/curasoft/emr-assist/internal/webchat"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *handlers.ChatHandler
	FavoritesHandler   *handlers.FavoritesHandler
	AdminStatsHandler  *handlers.AdminStatsHandler
	WebchatHandler     *webchat.Handler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Per-IP throttle for the public API; a zero policy disables it.
	RateLimit httpmiddleware.RateLimitPolicy
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimit.Enabled() {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimit))
		}
		if cfg.ChatHandler != nil {
			api.Post("/conversations", cfg.ChatHandler.StartConversation)
			api.Get("/conversations/{conversationID}", cfg.ChatHandler.GetConversation)
			api.Post("/conversations/{conversationID}/events", cfg.ChatHandler.PostEvent)
			api.Post("/ai-agent/chat", cfg.ChatHandler.AIAgentChat)
		}
		if cfg.FavoritesHandler != nil {
			api.Get("/users/{userID}/favorites", cfg.FavoritesHandler.List)
			api.Post("/users/{userID}/favorites", cfg.FavoritesHandler.Add)
			api.Get("/users/{userID}/favorites/{guidelineID}", cfg.FavoritesHandler.Check)
			api.Delete("/users/{userID}/favorites/{guidelineID}", cfg.FavoritesHandler.Remove)
		}
	})

	if cfg.WebchatHandler != nil {
		r.Route("/chat", func(chat chi.Router) {
			chat.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
			chat.Get("/history", cfg.WebchatHandler.HandleHistory)
			chat.Get("/widget.js", cfg.WebchatHandler.HandleWidgetJS)
		})
	}

	if cfg.AdminAuthSecret != "" && cfg.AdminStatsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/stats/daily", cfg.AdminStatsHandler.DailyStats)
		})
	}

	return r
}
