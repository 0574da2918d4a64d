package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/sportbar2312/reservation-bot/internal/http/middleware"
	"github.com/sportbar2312/reservation-bot/internal/webchat"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// RateLimiter throttles message posts per client IP. Nil disables it.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WebChat != nil {
		r.Route("/chat", func(chat chi.Router) {
			chat.Get("/ws", cfg.WebChat.HandleWebSocket)
			chat.Get("/venue", cfg.WebChat.HandleVenue)
			chat.Get("/bookings", cfg.WebChat.HandleBookings)
			chat.Group(func(limited chi.Router) {
				if cfg.RateLimiter != nil {
					limited.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
				}
				limited.Post("/message", cfg.WebChat.HandleMessage)
			})
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
