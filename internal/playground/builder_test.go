package playground_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"playground-go/internal/playground"
	"playground-go/internal/testutil"
)

func folderRec(path string) playground.Record {
	return playground.Record{
		Path:       path,
		ParentPath: playground.ParentPath(path),
		IsFolder:   true,
		Filename:   playground.BaseName(path),
	}
}

func fileRec(path, content string) playground.Record {
	parent, filename, ext := playground.SplitFilePath(path)
	return playground.Record{
		Path:       path,
		ParentPath: parent,
		Filename:   filename,
		Extension:  ext,
		Content:    content,
	}
}

func TestBuildTree(t *testing.T) {
	t.Run("nests records under their parents", func(t *testing.T) {
		records := []playground.Record{
			fileRec("index.js", "i"),
			folderRec("src"),
			fileRec("src/App.jsx", "a"),
			folderRec("src/components"),
			fileRec("src/components/Button.jsx", "b"),
		}
		got := playground.BuildTree(records, nil)
		want := playground.NewRoot(
			playground.NewFile("index", "js", "i"),
			playground.NewFolder("src",
				playground.NewFile("App", "jsx", "a"),
				playground.NewFolder("components",
					playground.NewFile("Button", "jsx", "b"),
				),
			),
		)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("BuildTree() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("children before their folder record", func(t *testing.T) {
		records := []playground.Record{
			fileRec("src/App.jsx", "a"),
			folderRec("src"),
		}
		got := playground.BuildTree(records, nil)
		want := playground.NewRoot(playground.NewFolder("src", playground.NewFile("App", "jsx", "a")))
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("BuildTree() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty input gives an empty root", func(t *testing.T) {
		got := playground.BuildTree(nil, nil)
		if got.Kind != playground.KindFolder || got.FolderName != playground.RootName || len(got.Items) != 0 {
			t.Errorf("BuildTree(nil) = %+v", got)
		}
	})

	t.Run("orphans are attached to the root and logged", func(t *testing.T) {
		logger := testutil.NewRecordingLogger()
		records := []playground.Record{
			fileRec("missing/App.jsx", "a"),
			folderRec("gone/sub"),
		}
		got := playground.BuildTree(records, logger)
		want := playground.NewRoot(
			playground.NewFile("App", "jsx", "a"),
			playground.NewFolder("sub"),
		)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("BuildTree() mismatch (-want +got):\n%s", diff)
		}
		if n := len(logger.Entries("WARN")); n != 2 {
			t.Errorf("got %d warnings, want 2", n)
		}
	})

	t.Run("cycles are broken at the root", func(t *testing.T) {
		records := []playground.Record{
			{Path: "a", ParentPath: "b", IsFolder: true, Filename: "a"},
			{Path: "b", ParentPath: "a", IsFolder: true, Filename: "b"},
			{Path: "c", ParentPath: "a", IsFolder: true, Filename: "c"},
		}
		got := playground.BuildTree(records, testutil.NewRecordingLogger())
		want := playground.NewRoot(
			playground.NewFolder("a", playground.NewFolder("c")),
			playground.NewFolder("b"),
		)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("BuildTree() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("duplicate folder records are ignored", func(t *testing.T) {
		records := []playground.Record{folderRec("src"), folderRec("src"), fileRec("src/a.js", "")}
		got := playground.BuildTree(records, testutil.NewRecordingLogger())
		want := playground.NewRoot(playground.NewFolder("src", playground.NewFile("a", "js", "")))
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("BuildTree() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFlatten(t *testing.T) {
	records := playground.Flatten(testutil.SampleTree(), "p1")

	var paths []string
	for _, r := range records {
		if r.PlaygroundID != "p1" {
			t.Errorf("record %q has playground %q", r.Path, r.PlaygroundID)
		}
		if r.ParentPath != playground.ParentPath(r.Path) {
			t.Errorf("record %q has parent %q", r.Path, r.ParentPath)
		}
		paths = append(paths, r.Path)
	}
	want := []string{
		"index.js",
		"src",
		"src/App.jsx",
		"src/components",
		"src/components/Button.jsx",
		"src/util.js",
		"public",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("Flatten() paths mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenBuildTreeRoundTrip(t *testing.T) {
	tree := testutil.SampleTree()
	got := playground.BuildTree(playground.Flatten(tree, "p1"), nil)
	if diff := cmp.Diff(tree, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
