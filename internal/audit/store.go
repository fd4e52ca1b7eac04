package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists audit entries. Insert joins an ambient transaction when one
// is present in the context so that in-transaction actions audit atomically.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// MemoryStore is the in-memory Store used in tests and when no database is
// configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
			continue
		}
		if f.ActionType != "" && e.ActionType != f.ActionType {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.CreatedAt.After(f.To) {
			continue
		}
		out = append(out, e)
	}

	// Newest first, matching the SQL store's ORDER BY created_at DESC.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
