package database

import (
	"context"
	"os"
	"testing"

	"playground-go/internal/playground"
)

// TestPostgresStore runs against a real server when
// PLAYGROUND_TEST_POSTGRES_URL is set. Each subtest starts from empty tables.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("PLAYGROUND_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PLAYGROUND_TEST_POSTGRES_URL not set")
	}

	runStoreTests(t, func(t *testing.T) playground.Store {
		t.Helper()
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, url)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		if _, err := s.pool.Exec(ctx, `TRUNCATE playgrounds, star_marks, template_files`); err != nil {
			s.Close()
			t.Fatalf("truncating tables: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
