package university

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
)

// Store persists universities and their contacts.
type Store interface {
	Create(ctx context.Context, u University) error
	GetByID(ctx context.Context, id uuid.UUID) (University, error)
	List(ctx context.Context) ([]University, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error

	InsertContacts(ctx context.Context, contacts []Contact) error
	ListContacts(ctx context.Context, universityID uuid.UUID) ([]Contact, error)
	DeleteContacts(ctx context.Context, universityID uuid.UUID) error
}

// MemoryStore is the in-memory Store for tests and db-less runs.
type MemoryStore struct {
	mu           sync.RWMutex
	universities map[uuid.UUID]University
	contacts     map[uuid.UUID][]Contact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		universities: make(map[uuid.UUID]University),
		contacts:     make(map[uuid.UUID][]Contact),
	}
}

func (s *MemoryStore) Create(_ context.Context, u University) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.universities {
		if strings.EqualFold(existing.Name, u.Name) {
			return sentinel.ErrConflict
		}
	}
	s.universities[u.ID] = u
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.universities[id]
	if !ok {
		return University{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) List(_ context.Context) ([]University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]University, 0, len(s.universities))
	for _, u := range s.universities {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.universities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	for otherID, other := range s.universities {
		if otherID != id && strings.EqualFold(other.Name, name) {
			return sentinel.ErrConflict
		}
	}
	u.Name = name
	s.universities[id] = u
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.universities[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.universities, id)
	delete(s.contacts, id)
	return nil
}

func (s *MemoryStore) InsertContacts(_ context.Context, contacts []Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contacts {
		s.contacts[c.UniversityID] = append(s.contacts[c.UniversityID], c)
	}
	return nil
}

func (s *MemoryStore) ListContacts(_ context.Context, universityID uuid.UUID) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Contact(nil), s.contacts[universityID]...), nil
}

func (s *MemoryStore) DeleteContacts(_ context.Context, universityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, universityID)
	return nil
}
