package favorites

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores favorites in Redis. Entries are durable; no TTL is
// applied since favorites outlive conversations.
type RedisKV struct {
	redis *redis.Client
}

// NewRedisKV creates a Redis-backed KV.
func NewRedisKV(client *redis.Client) *RedisKV {
	if client == nil {
		panic("favorites: redis client cannot be nil")
	}
	return &RedisKV{redis: client}
}

func (kv *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := kv.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("favorites: redis get: %w", err)
	}
	return data, nil
}

func (kv *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := kv.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("favorites: redis set: %w", err)
	}
	return nil
}

func (kv *RedisKV) Delete(ctx context.Context, key string) error {
	if err := kv.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("favorites: redis del: %w", err)
	}
	return nil
}

// MemoryKV is an in-process KV for tests and single-node runs.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (kv *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	data, ok := kv.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (kv *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

func (kv *MemoryKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}
