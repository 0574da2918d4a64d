package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportbar2312/reservation-bot/internal/cache"
	appconfig "github.com/sportbar2312/reservation-bot/internal/config"
	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.New("error")

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestBuildRedisClient_Disabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "  "}, nil, true))
}

func TestBuildRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &appconfig.Config{RedisAddr: addr}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))

	unverified := BuildRedisClient(context.Background(), cfg, logging.New("error"), false)
	require.NotNil(t, unverified)
	_ = unverified.Close()
}

func TestBuildPostgresPool_Disabled(t *testing.T) {
	assert.Nil(t, BuildPostgresPool(context.Background(), &appconfig.Config{}, nil))
	assert.Nil(t, BuildPostgresPool(context.Background(), &appconfig.Config{DatabaseURL: "postgres://%zz"}, logging.New("error")))
}

func TestBuildCacheBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	logger := logging.New("error")

	tests := []struct {
		name    string
		backend string
		redis   bool
		want    any
	}{
		{name: "redis", backend: appconfig.CacheBackendRedis, redis: true, want: &cache.RedisBackend{}},
		{name: "redis missing", backend: appconfig.CacheBackendRedis, want: &cache.MemoryBackend{}},
		{name: "postgres missing", backend: appconfig.CacheBackendPostgres, redis: true, want: &cache.MemoryBackend{}},
		{name: "memory", backend: appconfig.CacheBackendMemory, redis: true, want: &cache.MemoryBackend{}},
		{name: "unknown", backend: "dynamo", redis: true, want: &cache.MemoryBackend{}},
		{name: "default", backend: "", redis: true, want: &cache.RedisBackend{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := client
			if !tt.redis {
				rc = nil
			}
			got := BuildCacheBackend(&appconfig.Config{CacheBackend: tt.backend}, rc, nil, logger)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestBuildStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	t.Cleanup(func() { _ = client.Close() })
	logger := logging.New("error")

	assert.IsType(t, &conversation.RedisStateStore{}, BuildStateStore(&appconfig.Config{}, client, logger))
	assert.IsType(t, &conversation.MemoryStateStore{}, BuildStateStore(&appconfig.Config{}, nil, logger))
}
