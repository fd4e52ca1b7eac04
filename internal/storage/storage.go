// Package storage abstracts the object store holding consent documents and
// absence evidence files.
//
// Objects are keyed `{ownerID}/{uuid}.{ext}` inside a logical bucket, so a
// key never contains personal data and cannot be guessed. Reads go through
// presigned URLs with an explicit expiry.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"frisk/pkg/platform/sentinel"
)

// ObjectStore is the storage backend.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	// PresignGet returns a time-limited URL for downloading the object.
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// AllowedContentTypes are the upload types accepted for both consent
// documents and evidence files.
var AllowedContentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
}

// ObjectKey builds the storage key for a new upload owned by ownerID.
// Returns an error for content types outside the allow-list.
func ObjectKey(ownerID uuid.UUID, contentType string) (string, error) {
	ext, ok := AllowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("content type %q not allowed", contentType)
	}
	return path.Join(ownerID.String(), uuid.NewString()+"."+ext), nil
}

type memoryObject struct {
	body        []byte
	contentType string
}

// MemoryStore is the in-process ObjectStore for tests and storage-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

func (s *MemoryStore) Put(_ context.Context, bucket, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[memKey(bucket, key)] = memoryObject{
		body:        append([]byte(nil), body...),
		contentType: contentType,
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, memKey(bucket, key))
	return nil
}

func (s *MemoryStore) PresignGet(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[memKey(bucket, key)]; !ok {
		return "", sentinel.ErrNotFound
	}
	return fmt.Sprintf("memory://%s/%s?expires_in=%d", bucket, key, int(expiry.Seconds())), nil
}

// Get exposes a stored object for test assertions.
func (s *MemoryStore) Get(bucket, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[memKey(bucket, key)]
	if !ok {
		return nil, false
	}
	return obj.body, true
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
