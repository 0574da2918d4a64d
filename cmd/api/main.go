package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sportbar2312/reservation-bot/internal/api/router"
	"github.com/sportbar2312/reservation-bot/internal/app/bootstrap"
	"github.com/sportbar2312/reservation-bot/internal/cache"
	appconfig "github.com/sportbar2312/reservation-bot/internal/config"
	"github.com/sportbar2312/reservation-bot/internal/conversation"
	httpmiddleware "github.com/sportbar2312/reservation-bot/internal/http/middleware"
	"github.com/sportbar2312/reservation-bot/internal/observability/metrics"
	"github.com/sportbar2312/reservation-bot/internal/venue"
	"github.com/sportbar2312/reservation-bot/internal/webchat"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sportbar reservation bot",
		"env", cfg.Env,
		"port", cfg.Port,
		"cache_backend", cfg.CacheBackend,
	)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logger.Error("failed to load venue catalog", "error", err, "path", cfg.VenueConfigPath)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	pool := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	customerCache := cache.New(bootstrap.BuildCacheBackend(cfg, redisClient, pool, logger), cfg.BookingHistoryLimit)
	stateStore := bootstrap.BuildStateStore(cfg, redisClient, logger)

	wizardMetrics := metrics.NewWizardMetrics(prometheus.DefaultRegisterer)
	svc := conversation.NewService(
		wizard.New(catalog),
		stateStore,
		customerCache,
		logger,
		conversation.WithTypingDelay(cfg.TypingDelay),
		conversation.WithMetrics(wizardMetrics),
	)

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.RunEviction(ctx)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		WebChat:            webchat.NewHandler(svc, customerCache, catalog, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	// No WriteTimeout: the chat WebSocket is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// loadCatalog reads the venue catalog and applies the WHATSAPP_NUMBER
// override used for the confirmation link.
func loadCatalog(cfg *appconfig.Config) (*venue.Catalog, error) {
	catalog, err := venue.Load(cfg.VenueConfigPath)
	if err != nil {
		return nil, err
	}
	if number := strings.TrimSpace(cfg.WhatsAppNumber); number != "" {
		catalog.ContactNumber = number
	}
	return catalog, nil
}
