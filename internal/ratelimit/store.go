// Package ratelimit is a fixed-window per-IP limiter with a swappable
// counter backend.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	platformredis "frisk/internal/platform/redis"
)

// Store is the counter backend. Incr bumps the counter for key within the
// current fixed window and returns the new count plus when the window
// resets.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// RedisStore counts in Redis so limits hold across instances.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	// First hit of the window owns the expiry.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("expire %s: %w", redisKey, err)
		}
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the single-process fallback. Entries expire lazily on the
// next touch after their window ends.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]windowEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]windowEntry)}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.resetAt) {
		e = windowEntry{count: 0, resetAt: now.Add(window)}
	}
	e.count++
	s.entries[key] = e
	return e.count, e.resetAt, nil
}
