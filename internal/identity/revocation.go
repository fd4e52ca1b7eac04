package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	platformredis "frisk/internal/platform/redis"
)

// RevocationStore tracks token IDs that were revoked before expiry. Entries
// only need to live until the token would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationStore keeps the revocation list in Redis so it survives
// restarts and is shared between instances.
type RedisRevocationStore struct {
	client *platformredis.Client
}

func NewRedisRevocationStore(client *platformredis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func revocationKey(jti string) string {
	return "revoked:" + jti
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationStore is the single-process fallback.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	expiry, ok := s.revoked[jti]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		s.mu.Lock()
		delete(s.revoked, jti)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}
