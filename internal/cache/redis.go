package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisBackend stores values as strings and lists as Redis lists.
type RedisBackend struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisBackend returns a backend over client. A zero ttl keeps entries
// forever.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	if client == nil {
		panic("cache: redis client required")
	}
	return &RedisBackend{
		redis:  client,
		tracer: otel.Tracer("sportbar.internal.cache"),
		ttl:    ttl,
	}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := r.tracer.Start(ctx, "cache.redis.get")
	defer span.End()

	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := r.tracer.Start(ctx, "cache.redis.set")
	defer span.End()

	if err := r.redis.Set(ctx, key, value, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisBackend) PushBounded(ctx context.Context, key string, value []byte, limit int) error {
	ctx, span := r.tracer.Start(ctx, "cache.redis.push_bounded")
	defer span.End()

	pipe := r.redis.TxPipeline()
	pipe.RPush(ctx, key, value)
	if limit > 0 {
		pipe.LTrim(ctx, key, int64(-limit), -1)
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis push: %w", err)
	}
	return nil
}

func (r *RedisBackend) List(ctx context.Context, key string) ([][]byte, error) {
	ctx, span := r.tracer.Start(ctx, "cache.redis.list")
	defer span.End()

	raw, err := r.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("redis list: %w", err)
	}
	out := make([][]byte, 0, len(raw))
	for _, v := range raw {
		out = append(out, []byte(v))
	}
	return out, nil
}
