package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"playground-go/internal/playground"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// storeFactory returns a fresh, empty store for one subtest.
type storeFactory func(t *testing.T) playground.Store

// runStoreTests exercises the playground.Store contract against any backend.
func runStoreTests(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("project lifecycle", func(t *testing.T) {
		s := newStore(t)
		p := newProject("p1", "user-1")

		if err := s.CreateProject(ctx, p, nil); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}

		got, err := s.GetProject(ctx, "p1")
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if got == nil || got.Title != "Project p1" || got.UserID != "user-1" || got.Starred {
			t.Fatalf("GetProject() = %+v", got)
		}

		later := testTime.Add(time.Hour)
		if err := s.UpdateProject(ctx, "p1", "Renamed", "new description", later); err != nil {
			t.Fatalf("UpdateProject() error = %v", err)
		}
		got, _ = s.GetProject(ctx, "p1")
		if got.Title != "Renamed" || got.Description != "new description" || !got.UpdatedAt.Equal(later) {
			t.Errorf("after update = %+v", got)
		}

		if err := s.DeleteProject(ctx, "p1"); err != nil {
			t.Fatalf("DeleteProject() error = %v", err)
		}
		got, err = s.GetProject(ctx, "p1")
		if err != nil || got != nil {
			t.Errorf("GetProject() after delete = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("get missing project returns nil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetProject(ctx, "missing")
		if err != nil || got != nil {
			t.Errorf("GetProject() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("update missing project", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateProject(ctx, "missing", "t", "", testTime)
		if !errors.Is(err, playground.ErrProjectNotFound) {
			t.Errorf("UpdateProject() error = %v, want ErrProjectNotFound", err)
		}
	})

	t.Run("list projects by owner with stars", func(t *testing.T) {
		s := newStore(t)
		mine := newProject("a", "user-1")
		newer := newProject("b", "user-1")
		newer.UpdatedAt = testTime.Add(time.Minute)
		other := newProject("c", "user-2")
		for _, p := range []*playground.Project{mine, newer, other} {
			if err := s.CreateProject(ctx, p, nil); err != nil {
				t.Fatalf("CreateProject(%s) error = %v", p.ID, err)
			}
		}
		if err := s.SetStar(ctx, "a", "user-1", true); err != nil {
			t.Fatalf("SetStar() error = %v", err)
		}

		got, err := s.ListProjects(ctx, "user-1")
		if err != nil {
			t.Fatalf("ListProjects() error = %v", err)
		}
		var ids []string
		var starred []bool
		for _, p := range got {
			ids = append(ids, p.ID)
			starred = append(starred, p.Starred)
		}
		if diff := cmp.Diff([]string{"b", "a"}, ids); diff != "" {
			t.Errorf("ListProjects() ids (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]bool{false, true}, starred); diff != "" {
			t.Errorf("ListProjects() starred (-want +got):\n%s", diff)
		}

		if err := s.SetStar(ctx, "a", "user-1", false); err != nil {
			t.Fatalf("SetStar(false) error = %v", err)
		}
		p, _ := s.GetProject(ctx, "a")
		if p.Starred {
			t.Error("project still starred after unmarking")
		}
	})

	t.Run("create project with records keeps order", func(t *testing.T) {
		s := newStore(t)
		records := sampleRecords("p1")
		if err := s.CreateProject(ctx, newProject("p1", "u"), records); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}

		got, err := s.ListRecords(ctx, "p1")
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		if diff := cmp.Diff(paths(records), paths(got)); diff != "" {
			t.Errorf("ListRecords() order (-want +got):\n%s", diff)
		}
		if got[0].ParentPath != "" || got[2].ParentPath != "src" {
			t.Errorf("parent paths = %q, %q", got[0].ParentPath, got[2].ParentPath)
		}
	})

	t.Run("create project rolls back on conflict", func(t *testing.T) {
		s := newStore(t)
		records := sampleRecords("p1")
		records = append(records, records[1])
		records[len(records)-1].ID = "dup"

		err := s.CreateProject(ctx, newProject("p1", "u"), records)
		if !errors.Is(err, playground.ErrConflict) {
			t.Fatalf("CreateProject() error = %v, want ErrConflict", err)
		}
		if p, _ := s.GetProject(ctx, "p1"); p != nil {
			t.Error("project was stored despite failed transaction")
		}
	})

	t.Run("create records rejects duplicate path", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		err := s.CreateRecords(ctx, []playground.Record{fileRecord("p1", "x", "", "index", "js", "")})
		if !errors.Is(err, playground.ErrConflict) {
			t.Errorf("CreateRecords() error = %v, want ErrConflict", err)
		}
	})

	t.Run("update content", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		if err := s.UpdateContent(ctx, "p1", "src/App.jsx", "changed", testTime); err != nil {
			t.Fatalf("UpdateContent() error = %v", err)
		}
		r := recordAt(t, s, "p1", "src/App.jsx")
		if r.Content != "changed" {
			t.Errorf("Content = %q, want %q", r.Content, "changed")
		}

		if err := s.UpdateContent(ctx, "p1", "src", "x", testTime); !errors.Is(err, playground.ErrNotFound) {
			t.Errorf("UpdateContent(folder) error = %v, want ErrNotFound", err)
		}
		if err := s.UpdateContent(ctx, "p1", "nope.js", "x", testTime); !errors.Is(err, playground.ErrNotFound) {
			t.Errorf("UpdateContent(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete by path is prefix exact", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		extra := []playground.Record{
			folderRecord("p1", "f1", "", "src2"),
			fileRecord("p1", "f2", "src2", "keep", "js", ""),
		}
		if err := s.CreateRecords(ctx, extra); err != nil {
			t.Fatalf("CreateRecords() error = %v", err)
		}

		n, err := s.DeleteByPath(ctx, "p1", "src")
		if err != nil {
			t.Fatalf("DeleteByPath() error = %v", err)
		}
		if n != 5 {
			t.Errorf("DeleteByPath() removed %d rows, want 5", n)
		}

		got, _ := s.ListRecords(ctx, "p1")
		want := []string{"index.js", "src2", "src2/keep.js"}
		if diff := cmp.Diff(want, paths(got)); diff != "" {
			t.Errorf("remaining paths (-want +got):\n%s", diff)
		}
	})

	t.Run("delete missing path is a no-op", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		n, err := s.DeleteByPath(ctx, "p1", "foo/bar.js")
		if err != nil || n != 0 {
			t.Errorf("DeleteByPath() = %d, %v; want 0, nil", n, err)
		}
	})

	t.Run("rename file", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		newPath, err := s.RenameFile(ctx, "p1", "src/App.jsx", "Main", "tsx", testTime)
		if err != nil {
			t.Fatalf("RenameFile() error = %v", err)
		}
		if newPath != "src/Main.tsx" {
			t.Errorf("RenameFile() = %q, want %q", newPath, "src/Main.tsx")
		}
		r := recordAt(t, s, "p1", "src/Main.tsx")
		if r.Filename != "Main" || r.Extension != "tsx" || r.ParentPath != "src" || r.Content != "app" {
			t.Errorf("renamed record = %+v", r)
		}

		if _, err := s.RenameFile(ctx, "p1", "src/Main.tsx", "index", "js", testTime); err != nil {
			t.Fatalf("RenameFile() into sibling name of other folder error = %v", err)
		}
		if _, err := s.RenameFile(ctx, "p1", "src/index.js", "util", "js", testTime); !errors.Is(err, playground.ErrConflict) {
			t.Errorf("RenameFile() onto existing path error = %v, want ErrConflict", err)
		}
		if _, err := s.RenameFile(ctx, "p1", "src", "x", "", testTime); !errors.Is(err, playground.ErrNotFile) {
			t.Errorf("RenameFile(folder) error = %v, want ErrNotFile", err)
		}
		if _, err := s.RenameFile(ctx, "p1", "nope.js", "x", "", testTime); !errors.Is(err, playground.ErrNotFound) {
			t.Errorf("RenameFile(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rename folder rewrites descendants", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		newPath, err := s.RenameFolder(ctx, "p1", "src", "source", testTime)
		if err != nil {
			t.Fatalf("RenameFolder() error = %v", err)
		}
		if newPath != "source" {
			t.Errorf("RenameFolder() = %q, want %q", newPath, "source")
		}

		got, _ := s.ListRecords(ctx, "p1")
		want := []string{"index.js", "source", "source/App.jsx", "source/components", "source/components/Button.jsx", "source/util.js"}
		if diff := cmp.Diff(want, paths(got)); diff != "" {
			t.Errorf("paths after rename (-want +got):\n%s", diff)
		}
		button := recordAt(t, s, "p1", "source/components/Button.jsx")
		if button.ParentPath != "source/components" {
			t.Errorf("Button.jsx parent = %q, want %q", button.ParentPath, "source/components")
		}
		folder := recordAt(t, s, "p1", "source")
		if folder.Filename != "source" || folder.ParentPath != "" {
			t.Errorf("folder record = %+v", folder)
		}
	})

	t.Run("rename folder does not touch prefix siblings", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		extra := []playground.Record{
			folderRecord("p1", "f1", "", "src2"),
			fileRecord("p1", "f2", "src2", "keep", "js", ""),
		}
		if err := s.CreateRecords(ctx, extra); err != nil {
			t.Fatalf("CreateRecords() error = %v", err)
		}
		if _, err := s.RenameFolder(ctx, "p1", "src", "lib", testTime); err != nil {
			t.Fatalf("RenameFolder() error = %v", err)
		}
		recordAt(t, s, "p1", "src2/keep.js")
	})

	t.Run("rename nested folder", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		newPath, err := s.RenameFolder(ctx, "p1", "src/components", "ui", testTime)
		if err != nil {
			t.Fatalf("RenameFolder() error = %v", err)
		}
		if newPath != "src/ui" {
			t.Errorf("RenameFolder() = %q, want %q", newPath, "src/ui")
		}
		r := recordAt(t, s, "p1", "src/ui/Button.jsx")
		if r.ParentPath != "src/ui" {
			t.Errorf("parent = %q, want %q", r.ParentPath, "src/ui")
		}
	})

	t.Run("rename folder conflicts", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		if err := s.CreateRecords(ctx, []playground.Record{folderRecord("p1", "f1", "", "lib")}); err != nil {
			t.Fatalf("CreateRecords() error = %v", err)
		}
		if _, err := s.RenameFolder(ctx, "p1", "src", "lib", testTime); !errors.Is(err, playground.ErrConflict) {
			t.Errorf("RenameFolder() error = %v, want ErrConflict", err)
		}
		recordAt(t, s, "p1", "src/App.jsx")

		if _, err := s.RenameFolder(ctx, "p1", "index.js", "x", testTime); !errors.Is(err, playground.ErrNotFolder) {
			t.Errorf("RenameFolder(file) error = %v, want ErrNotFolder", err)
		}
		if _, err := s.RenameFolder(ctx, "p1", "missing", "x", testTime); !errors.Is(err, playground.ErrNotFound) {
			t.Errorf("RenameFolder(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("records survive round trip into a tree", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		records, err := s.ListRecords(ctx, "p1")
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		tree := playground.BuildTree(records, nil)
		if playground.Find(tree, "src/components/Button.jsx") == nil {
			t.Error("Button.jsx missing from rebuilt tree")
		}
	})

	t.Run("delete project cascades to records", func(t *testing.T) {
		s := newStoreWithSample(t, newStore)
		if err := s.DeleteProject(ctx, "p1"); err != nil {
			t.Fatalf("DeleteProject() error = %v", err)
		}
		got, err := s.ListRecords(ctx, "p1")
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListRecords() = %d records, want 0", len(got))
		}
	})
}

func newProject(id, userID string) *playground.Project {
	return &playground.Project{
		ID:        id,
		Title:     "Project " + id,
		Template:  "REACT",
		UserID:    userID,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

// sampleRecords describes:
//
//	index.js
//	src/
//	  App.jsx
//	  components/
//	    Button.jsx
//	  util.js
func sampleRecords(projectID string) []playground.Record {
	return []playground.Record{
		fileRecord(projectID, "r1", "", "index", "js", "index"),
		folderRecord(projectID, "r2", "", "src"),
		fileRecord(projectID, "r3", "src", "App", "jsx", "app"),
		folderRecord(projectID, "r4", "src", "components"),
		fileRecord(projectID, "r5", "src/components", "Button", "jsx", "button"),
		fileRecord(projectID, "r6", "src", "util", "js", ""),
	}
}

func newStoreWithSample(t *testing.T, newStore storeFactory) playground.Store {
	t.Helper()
	s := newStore(t)
	if err := s.CreateProject(context.Background(), newProject("p1", "u"), sampleRecords("p1")); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return s
}

func fileRecord(projectID, id, parent, filename, ext, content string) playground.Record {
	return playground.Record{
		ID:           fmt.Sprintf("%s-%s", projectID, id),
		PlaygroundID: projectID,
		Path:         playground.FilePath(parent, filename, ext),
		ParentPath:   parent,
		Filename:     filename,
		Extension:    ext,
		Content:      content,
		UpdatedAt:    testTime,
	}
}

func folderRecord(projectID, id, parent, name string) playground.Record {
	return playground.Record{
		ID:           fmt.Sprintf("%s-%s", projectID, id),
		PlaygroundID: projectID,
		Path:         playground.FolderPath(parent, name),
		ParentPath:   parent,
		IsFolder:     true,
		Filename:     name,
		UpdatedAt:    testTime,
	}
}

func recordAt(t *testing.T, s playground.Store, projectID, path string) playground.Record {
	t.Helper()
	records, err := s.ListRecords(context.Background(), projectID)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	for _, r := range records {
		if r.Path == path {
			return r
		}
	}
	t.Fatalf("no record at %q; have %v", path, paths(records))
	return playground.Record{}
}

func paths(records []playground.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}
