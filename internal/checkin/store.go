package checkin

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
)

// Store persists quarterly check-ins. Upsert must be atomic on
// (student_id, quarter_bucket) so two concurrent verifiers cannot produce
// two rows for the same quarter.
type Store interface {
	Upsert(ctx context.Context, c QuarterlyCheckin) error
	GetCurrent(ctx context.Context, studentID uuid.UUID, bucket string) (QuarterlyCheckin, error)
	ListByBucket(ctx context.Context, bucket string) ([]QuarterlyCheckin, error)
}

type bucketKey struct {
	studentID uuid.UUID
	bucket    string
}

// MemoryStore is the in-memory Store for tests and db-less runs. The map
// key mirrors the unique constraint of the SQL schema.
type MemoryStore struct {
	mu       sync.RWMutex
	checkins map[bucketKey]QuarterlyCheckin
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkins: make(map[bucketKey]QuarterlyCheckin)}
}

func (s *MemoryStore) Upsert(_ context.Context, c QuarterlyCheckin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucketKey{studentID: c.StudentID, bucket: c.QuarterBucket}
	if existing, ok := s.checkins[key]; ok {
		// Keep identity and creation time of the original row.
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	s.checkins[key] = c
	return nil
}

func (s *MemoryStore) GetCurrent(_ context.Context, studentID uuid.UUID, bucket string) (QuarterlyCheckin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checkins[bucketKey{studentID: studentID, bucket: bucket}]
	if !ok {
		return QuarterlyCheckin{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListByBucket(_ context.Context, bucket string) ([]QuarterlyCheckin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QuarterlyCheckin
	for key, c := range s.checkins {
		if key.bucket == bucket {
			out = append(out, c)
		}
	}
	return out, nil
}
