package student

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
)

// Store persists students and their contact-change history. All read paths
// exclude soft-deleted rows; only List with no filter sees every university.
type Store interface {
	Create(ctx context.Context, st Student) error
	GetByID(ctx context.Context, id uuid.UUID) (Student, error)
	List(ctx context.Context, f Filter) ([]Student, error)
	Update(ctx context.Context, st Student) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	CountByUniversity(ctx context.Context, universityID uuid.UUID) (int, error)

	AppendChangeLog(ctx context.Context, log ContactChangeLog) error
	ListChangeLogs(ctx context.Context, studentID uuid.UUID) ([]ContactChangeLog, error)
}

// MemoryStore is the in-memory Store for tests and db-less runs.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[uuid.UUID]Student
	logs     map[uuid.UUID][]ContactChangeLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students: make(map[uuid.UUID]Student),
		logs:     make(map[uuid.UUID][]ContactChangeLog),
	}
}

func (s *MemoryStore) duplicateLocked(st Student) bool {
	for _, other := range s.students {
		if other.ID == st.ID || other.DeletedAt != nil {
			continue
		}
		if other.UniversityID == st.UniversityID &&
			other.Program == st.Program &&
			strings.EqualFold(other.StudentNo, st.StudentNo) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Create(_ context.Context, st Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateLocked(st) {
		return sentinel.ErrConflict
	}
	s.students[st.ID] = st
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok || st.DeletedAt != nil {
		return Student{}, sentinel.ErrNotFound
	}
	return st, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Student
	for _, st := range s.students {
		if st.DeletedAt != nil {
			continue
		}
		if f.UniversityID != nil && st.UniversityID != *f.UniversityID {
			continue
		}
		if f.Program != "" && st.Program != f.Program {
			continue
		}
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentNo < out[j].StudentNo })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, st Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.students[st.ID]
	if !ok || existing.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	if s.duplicateLocked(st) {
		return sentinel.ErrConflict
	}
	s.students[st.ID] = st
	return nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.students[id]
	if !ok || existing.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	existing.DeletedAt = &at
	existing.UpdatedAt = at
	s.students[id] = existing
	return nil
}

func (s *MemoryStore) CountByUniversity(_ context.Context, universityID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.students {
		if st.DeletedAt == nil && st.UniversityID == universityID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AppendChangeLog(_ context.Context, log ContactChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.StudentID] = append(s.logs[log.StudentID], log)
	return nil
}

func (s *MemoryStore) ListChangeLogs(_ context.Context, studentID uuid.UUID) ([]ContactChangeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ContactChangeLog(nil), s.logs[studentID]...), nil
}
