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
)

// ErrNotFound is returned when a conversation does not exist (or expired).
var ErrNotFound = errors.New("conversation: not found")

// Store persists conversation state. Conversations are ephemeral: stores
// apply a TTL and a reset or expiry discards everything.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, st *State) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps conversation state in Redis with a TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if tracer == nil {
		tracer = otel.Tracer("emrassist.internal.conversation.store")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// Load retrieves a conversation, returning ErrNotFound when absent.
func (s *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &st, nil
}

// Save persists a conversation and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, st *State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save")
	defer span.End()

	data, err := json.Marshal(st)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(st.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Delete removes a conversation.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete")
	defer span.End()

	if err := s.redis.Del(ctx, conversationKey(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	cp.Messages = append([]Message(nil), st.Messages...)
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	cp.Messages = append([]Message(nil), st.Messages...)
	s.states[st.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}
