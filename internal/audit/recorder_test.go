package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frisk/internal/platform/metrics"
	"frisk/pkg/requestcontext"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.New()

type failingStore struct{}

func (failingStore) Insert(context.Context, Entry) error { return errors.New("db down") }
func (failingStore) List(context.Context, Filter) ([]Entry, error) {
	return nil, errors.New("db down")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecorderRecord(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discardLogger(), testMetrics)

	userID := uuid.New()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "curl/8.0")

	rec.Record(ctx, &userID, ActionUpdate, map[string]any{"entity": "student"})

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, userID, *entries[0].UserID)
	assert.Equal(t, ActionUpdate, entries[0].ActionType)
	assert.Equal(t, "203.0.113.7", entries[0].IPAddress)
	assert.Equal(t, at, entries[0].CreatedAt)
}

func TestRecorderSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(failingStore{}, discardLogger(), testMetrics)
	userID := uuid.New()

	// Must not panic or propagate; the primary operation continues.
	rec.Record(context.Background(), &userID, ActionDelete, nil)
	rec.Logout(context.Background(), userID)
}

func TestLoginVariants(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, discardLogger(), testMetrics)

	ctx := requestcontext.WithClientMetadata(context.Background(),
		"198.51.100.4",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	userID := uuid.New()
	rec.LoginSuccess(ctx, userID, "admin@example.com")
	rec.LoginFailure(ctx, nil, "ghost@example.com", "unknown email")

	entries, err := store.List(ctx, Filter{ActionType: ActionLogin})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, e := range entries {
		assert.Equal(t, "198.51.100.4", e.IPAddress)
		assert.Contains(t, e.Details, "browser")
		assert.Contains(t, e.Details, "os")
	}

	var success, failure Entry
	for _, e := range entries {
		if e.Details["success"] == true {
			success = e
		} else {
			failure = e
		}
	}
	assert.Equal(t, userID, *success.UserID)
	assert.Equal(t, "admin@example.com", success.Details["email"])
	assert.Nil(t, failure.UserID)
	assert.Equal(t, "unknown email", failure.Details["reason"])
}

func TestMemoryStoreListFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	u1, u2 := uuid.New(), uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []Entry{
		{UserID: &u1, ActionType: ActionLogin, CreatedAt: base},
		{UserID: &u1, ActionType: ActionUpdate, CreatedAt: base.Add(time.Hour)},
		{UserID: &u2, ActionType: ActionLogin, CreatedAt: base.Add(2 * time.Hour)},
		{UserID: nil, ActionType: ActionLogin, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, e := range seed {
		require.NoError(t, store.Insert(ctx, e))
	}

	t.Run("by user", func(t *testing.T) {
		got, err := store.List(ctx, Filter{UserID: &u1})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by action", func(t *testing.T) {
		got, err := store.List(ctx, Filter{ActionType: ActionLogin})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("time window", func(t *testing.T) {
		got, err := store.List(ctx, Filter{From: base.Add(30 * time.Minute), To: base.Add(2 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("newest first with paging", func(t *testing.T) {
		got, err := store.List(ctx, Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, base.Add(2*time.Hour), got[0].CreatedAt)
		assert.Equal(t, base.Add(time.Hour), got[1].CreatedAt)
	})
}
