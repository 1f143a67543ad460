package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingSyncer struct {
	mu      sync.Mutex
	files   map[string]string
	deleted []string
}

func newRecordingSyncer() *recordingSyncer {
	return &recordingSyncer{files: make(map[string]string)}
}

func (s *recordingSyncer) SyncFile(_ context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

func (s *recordingSyncer) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *recordingSyncer) file(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.files[path]
	return c, ok
}

func (s *recordingSyncer) wasDeleted(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deleted {
		if d == path {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startWatcher(t *testing.T, dir string, syncer Syncer) {
	t.Helper()
	w, err := NewWatcher(dir, []string{"*.tmp"}, syncer, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
}

func TestWatcher(t *testing.T) {
	t.Run("syncs written files", func(t *testing.T) {
		dir := t.TempDir()
		syncer := newRecordingSyncer()
		startWatcher(t, dir, syncer)

		if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("hello"), 0644); err != nil {
			t.Fatal(err)
		}
		eventually(t, "index.js sync", func() bool {
			c, ok := syncer.file("index.js")
			return ok && c == "hello"
		})
	})

	t.Run("syncs files in new folders", func(t *testing.T) {
		dir := t.TempDir()
		syncer := newRecordingSyncer()
		startWatcher(t, dir, syncer)

		if err := os.MkdirAll(filepath.Join(dir, "src", "lib"), 0755); err != nil {
			t.Fatal(err)
		}
		// Give the watcher a moment to add the new folders.
		time.Sleep(100 * time.Millisecond)
		if err := os.WriteFile(filepath.Join(dir, "src", "lib", "util.js"), []byte("u"), 0644); err != nil {
			t.Fatal(err)
		}
		eventually(t, "src/lib/util.js sync", func() bool {
			c, ok := syncer.file("src/lib/util.js")
			return ok && c == "u"
		})
	})

	t.Run("syncs removals", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "old.js")
		if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		syncer := newRecordingSyncer()
		startWatcher(t, dir, syncer)

		if err := os.Remove(target); err != nil {
			t.Fatal(err)
		}
		eventually(t, "old.js removal", func() bool { return syncer.wasDeleted("old.js") })
	})

	t.Run("skips ignored paths", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "node_modules"), 0755); err != nil {
			t.Fatal(err)
		}
		syncer := newRecordingSyncer()
		startWatcher(t, dir, syncer)

		os.WriteFile(filepath.Join(dir, "node_modules", "x.js"), []byte("x"), 0644)
		os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0644)
		os.WriteFile(filepath.Join(dir, "marker.js"), []byte("m"), 0644)

		eventually(t, "marker.js sync", func() bool {
			_, ok := syncer.file("marker.js")
			return ok
		})
		for _, p := range []string{"node_modules/x.js", "scratch.tmp"} {
			if _, ok := syncer.file(p); ok {
				t.Errorf("%s should be ignored", p)
			}
		}
	})

	t.Run("skips build output, gitignored and binary files", func(t *testing.T) {
		dir := t.TempDir()
		for _, d := range []string{filepath.Join(".next", "cache"), "dist", "generated"} {
			if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.WriteFile(filepath.Join(dir, GitIgnoreFile), []byte("/generated/\n*.log\n"), 0644); err != nil {
			t.Fatal(err)
		}
		syncer := newRecordingSyncer()
		startWatcher(t, dir, syncer)

		os.WriteFile(filepath.Join(dir, ".next", "cache", "0.pack"), []byte("\x1f\x8b\xff\x00"), 0644)
		os.WriteFile(filepath.Join(dir, "dist", "bundle.js"), []byte("x"), 0644)
		os.WriteFile(filepath.Join(dir, "generated", "types.ts"), []byte("x"), 0644)
		os.WriteFile(filepath.Join(dir, "server.log"), []byte("x"), 0644)
		os.WriteFile(filepath.Join(dir, "favicon.ico"), []byte{0xff, 0xfe, 0x00, 0x80}, 0644)
		os.WriteFile(filepath.Join(dir, "marker.js"), []byte("m"), 0644)

		eventually(t, "marker.js sync", func() bool {
			_, ok := syncer.file("marker.js")
			return ok
		})
		for _, p := range []string{".next/cache/0.pack", "dist/bundle.js", "generated/types.ts", "server.log", "favicon.ico"} {
			if _, ok := syncer.file(p); ok {
				t.Errorf("%s should not be synced", p)
			}
		}
	})
}
