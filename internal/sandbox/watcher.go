package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"playground-go/internal/playground"
)

// Syncer receives changes made inside a sandbox directory.
// *playground.Session satisfies it.
type Syncer interface {
	SyncFile(ctx context.Context, path, content string) error
	Delete(ctx context.Context, path string) error
}

// Watcher mirrors edits made in a sandbox directory, for example by a dev
// server or an editor on the host, back into the project tree.
type Watcher struct {
	dir     string
	ignore  *IgnoreMatcher
	syncer  Syncer
	logger  playground.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches dir and every non-ignored folder below it.
func NewWatcher(dir string, ignore []string, syncer Syncer, logger playground.Logger) (*Watcher, error) {
	if logger == nil {
		logger = playground.NewNopLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	patterns := append(slices.Clone(DefaultIgnorePatterns), ignore...)
	for _, name := range []string{GitIgnoreFile, IgnoreFile} {
		extra, err := ParseIgnoreFile(filepath.Join(dir, name))
		if err != nil {
			fw.Close()
			return nil, err
		}
		patterns = append(patterns, extra...)
	}

	w := &Watcher{
		dir:     dir,
		ignore:  NewIgnoreMatcher(patterns),
		syncer:  syncer,
		logger:  logger,
		watcher: fw,
	}
	if err := w.addTree(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("sandbox watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.ignore.Match(rel) {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone again before we looked.
			return
		}
		if info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new folder failed", "path", rel, "error", err)
			}
			return
		}
		w.sync(ctx, event.Name, rel)
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if err := w.syncer.Delete(ctx, rel); err != nil {
			w.logger.Warn("syncing removal failed", "path", rel, "error", err)
			return
		}
		w.logger.Debug("sandbox removal synced", "path", rel)
	}
}

func (w *Watcher) sync(ctx context.Context, full, rel string) {
	data, err := os.ReadFile(full)
	if err != nil {
		w.logger.Warn("reading changed file failed", "path", rel, "error", err)
		return
	}
	if !utf8.Valid(data) {
		w.logger.Debug("skipping binary file", "path", rel, "size", len(data))
		return
	}
	if err := w.syncer.SyncFile(ctx, rel, string(data)); err != nil {
		w.logger.Warn("syncing file failed", "path", rel, "error", err)
		return
	}
	w.logger.Debug("sandbox change synced", "path", rel)
}

// addTree watches root and its folders. Files already present in a folder
// that appeared after the watch started are synced, since their create
// events were missed.
func (w *Watcher) addTree(root string) error {
	initial := root == w.dir
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, _ := filepath.Rel(w.dir, path)
		rel = filepath.ToSlash(rel)
		if rel != "." && w.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", rel, err)
			}
			return nil
		}
		if !initial {
			w.sync(context.Background(), path, rel)
		}
		return nil
	})
}
