package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryUserStore is the in-memory UserStore for tests and db-less runs.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uuid.UUID]User)}
}

func (s *MemoryUserStore) Create(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrConflict
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id uuid.UUID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, sentinel.ErrNotFound
}

func (s *MemoryUserStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *MemoryUserStore) Update(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrConflict
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.users, id)
	return nil
}
