package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sportbar2312/reservation-bot/internal/wizard"
)

const (
	defaultConversationTTL = 24 * time.Hour
	busyLockTTL            = 30 * time.Second
)

// ErrUnknownConversation is returned by StateStore.Load for ids that were
// never saved or have expired.
var ErrUnknownConversation = errors.New("conversation: unknown conversation")

// StateStore persists wizard state per conversation and owns the busy flag.
type StateStore interface {
	Load(ctx context.Context, conversationID string) (wizard.State, error)
	Save(ctx context.Context, conversationID string, st wizard.State) error
	// TryAcquire sets the busy flag, reporting false if it was already set.
	TryAcquire(ctx context.Context, conversationID string) (bool, error)
	Release(ctx context.Context, conversationID string) error
}

// RedisStateStore keeps state as JSON strings with a sliding TTL. The busy
// flag is a SETNX key that expires on its own if a process dies mid-turn.
type RedisStateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultConversationTTL
	}
	return &RedisStateStore{
		redis:  client,
		tracer: otel.Tracer("sportbar.internal.conversation.state"),
		ttl:    ttl,
	}
}

func (s *RedisStateStore) Save(ctx context.Context, conversationID string, st wizard.State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	data, err := json.Marshal(st)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context, conversationID string) (wizard.State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return wizard.State{}, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
		}
		span.RecordError(err)
		return wizard.State{}, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var st wizard.State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return wizard.State{}, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return st, nil
}

func (s *RedisStateStore) TryAcquire(ctx context.Context, conversationID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.acquire")
	defer span.End()

	ok, err := s.redis.SetNX(ctx, busyKey(conversationID), "1", busyLockTTL).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("conversation: failed to set busy flag: %w", err)
	}
	return ok, nil
}

func (s *RedisStateStore) Release(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.release")
	defer span.End()

	if err := s.redis.Del(ctx, busyKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to clear busy flag: %w", err)
	}
	return nil
}

func stateKey(id string) string {
	return fmt.Sprintf("sportbar:conversation:%s", id)
}

func busyKey(id string) string {
	return fmt.Sprintf("sportbar:conversation:%s:busy", id)
}

// MemoryStateStore is the in-process StateStore used by the simulator and
// tests. Entries never expire.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]wizard.State
	busy   map[string]struct{}
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]wizard.State),
		busy:   make(map[string]struct{}),
	}
}

func (s *MemoryStateStore) Load(_ context.Context, conversationID string) (wizard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[conversationID]
	if !ok {
		return wizard.State{}, fmt.Errorf("%w: %s", ErrUnknownConversation, conversationID)
	}
	return st, nil
}

func (s *MemoryStateStore) Save(_ context.Context, conversationID string, st wizard.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[conversationID] = st
	return nil
}

func (s *MemoryStateStore) TryAcquire(_ context.Context, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.busy[conversationID]; held {
		return false, nil
	}
	s.busy[conversationID] = struct{}{}
	return true, nil
}

func (s *MemoryStateStore) Release(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, conversationID)
	return nil
}
