package absence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
)

// Store persists absences and their evidence file metadata.
type Store interface {
	Create(ctx context.Context, a Absence) error
	GetByID(ctx context.Context, id uuid.UUID) (Absence, error)
	List(ctx context.Context, f Filter) ([]Absence, error)
	Delete(ctx context.Context, id uuid.UUID) error

	InsertFile(ctx context.Context, f File) error
	GetFile(ctx context.Context, id uuid.UUID) (File, error)
	ListFiles(ctx context.Context, absenceID uuid.UUID) ([]File, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
	DeleteFilesByAbsence(ctx context.Context, absenceID uuid.UUID) error
}

// MemoryStore is the in-memory Store for tests and db-less runs.
type MemoryStore struct {
	mu       sync.RWMutex
	absences map[uuid.UUID]Absence
	files    map[uuid.UUID]File
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		absences: make(map[uuid.UUID]Absence),
		files:    make(map[uuid.UUID]File),
	}
}

func (s *MemoryStore) Create(_ context.Context, a Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.absences[a.ID] = a
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.absences[id]
	if !ok {
		return Absence{}, sentinel.ErrNotFound
	}
	return a, nil
}

func matches(a Absence, f Filter) bool {
	if f.StudentID != nil && a.StudentID != *f.StudentID {
		return false
	}
	if f.StudentIDs != nil {
		found := false
		for _, id := range f.StudentIDs {
			if a.StudentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Reason != "" && a.Reason != f.Reason {
		return false
	}
	if !f.From.IsZero() && a.AbsenceDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.AbsenceDate.After(f.To) {
		return false
	}
	return true
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Absence
	for _, a := range s.absences {
		if matches(a, f) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AbsenceDate.After(out[j].AbsenceDate)
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.absences[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.absences, id)
	return nil
}

func (s *MemoryStore) InsertFile(_ context.Context, f File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = f
	return nil
}

func (s *MemoryStore) GetFile(_ context.Context, id uuid.UUID) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return File{}, sentinel.ErrNotFound
	}
	return f, nil
}

func (s *MemoryStore) ListFiles(_ context.Context, absenceID uuid.UUID) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []File
	for _, f := range s.files {
		if f.AbsenceID == absenceID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteFile(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *MemoryStore) DeleteFilesByAbsence(_ context.Context, absenceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.files {
		if f.AbsenceID == absenceID {
			delete(s.files, id)
		}
	}
	return nil
}
