package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sportbar2312/reservation-bot/internal/cache"
	appconfig "github.com/sportbar2312/reservation-bot/internal/config"
	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. It returns nil when no URL is
// configured or the database does not answer a ping.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *pgxpool.Pool {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres config invalid", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("postgres not available", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildCacheBackend picks the customer cache backend named by CACHE_BACKEND.
// A backend whose connection is missing degrades to the in-process one so
// the wizard keeps working without persistence.
func BuildCacheBackend(cfg *appconfig.Config, redisClient *redis.Client, pool *pgxpool.Pool, logger *logging.Logger) cache.Backend {
	if logger == nil {
		logger = logging.Default()
	}
	kind := appconfig.CacheBackendRedis
	if cfg != nil && cfg.CacheBackend != "" {
		kind = cfg.CacheBackend
	}

	switch kind {
	case appconfig.CacheBackendRedis:
		if redisClient != nil {
			logger.Info("customer cache enabled", "backend", kind)
			return cache.NewRedisBackend(redisClient, 0)
		}
	case appconfig.CacheBackendPostgres:
		if pool != nil {
			logger.Info("customer cache enabled", "backend", kind)
			return cache.NewPostgresBackend(pool)
		}
	case appconfig.CacheBackendMemory:
		logger.Info("customer cache enabled", "backend", kind)
		return cache.NewMemoryBackend()
	default:
		logger.Warn("unknown cache backend", "backend", kind)
	}

	logger.Warn("customer cache falling back to memory", "requested", kind)
	return cache.NewMemoryBackend()
}

// BuildStateStore keeps conversation state in Redis when it is reachable and
// in process memory otherwise.
func BuildStateStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) conversation.StateStore {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Warn("conversation state kept in memory")
		return conversation.NewMemoryStateStore()
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.ConversationTTL
	}
	return conversation.NewRedisStateStore(redisClient, ttl)
}
