package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"playground-go/internal/database"
	"playground-go/internal/playground"
)

// NewTestStore creates an in-memory SQLite store with all migrations applied.
// The store is closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	store, err := database.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// ErrInjected is returned by a FailingStore that has been told to fail.
var ErrInjected = errors.New("injected store failure")

// FailingStore wraps a Store and fails record writes while Fail is set.
// Reads and project operations always pass through.
type FailingStore struct {
	playground.Store

	mu   sync.Mutex
	fail bool
}

func NewFailingStore(inner playground.Store) *FailingStore {
	return &FailingStore{Store: inner}
}

// Fail makes subsequent record writes return ErrInjected until cleared.
func (s *FailingStore) Fail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *FailingStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *FailingStore) CreateRecords(ctx context.Context, records []playground.Record) error {
	if s.failing() {
		return ErrInjected
	}
	return s.Store.CreateRecords(ctx, records)
}

func (s *FailingStore) UpdateContent(ctx context.Context, projectID, path, content string, at time.Time) error {
	if s.failing() {
		return ErrInjected
	}
	return s.Store.UpdateContent(ctx, projectID, path, content, at)
}

func (s *FailingStore) DeleteByPath(ctx context.Context, projectID, path string) (int64, error) {
	if s.failing() {
		return 0, ErrInjected
	}
	return s.Store.DeleteByPath(ctx, projectID, path)
}

func (s *FailingStore) RenameFile(ctx context.Context, projectID, oldPath, filename, extension string, at time.Time) (string, error) {
	if s.failing() {
		return "", ErrInjected
	}
	return s.Store.RenameFile(ctx, projectID, oldPath, filename, extension, at)
}

func (s *FailingStore) RenameFolder(ctx context.Context, projectID, oldPath, newName string, at time.Time) (string, error) {
	if s.failing() {
		return "", ErrInjected
	}
	return s.Store.RenameFolder(ctx, projectID, oldPath, newName, at)
}
