package playground_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"playground-go/internal/playground"
	"playground-go/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestInsert(t *testing.T) {
	t.Run("appends at the root", func(t *testing.T) {
		tree := testutil.SampleTree()
		got := playground.Insert(tree, "", playground.NewFile("util", "js", ""))
		last := got.Items[len(got.Items)-1]
		if last.Name() != "util.js" {
			t.Errorf("last root item = %q, want util.js", last.Name())
		}
		if len(tree.Items) != 3 {
			t.Errorf("input root changed: %d items", len(tree.Items))
		}
	})

	t.Run("appends in a nested folder and shares untouched subtrees", func(t *testing.T) {
		tree := testutil.SampleTree()
		got := playground.Insert(tree, "src/components", playground.NewFile("Card", "jsx", ""))

		if playground.Find(got, "src/components/Card.jsx") == nil {
			t.Fatal("inserted file not found")
		}
		if playground.Find(tree, "src/components/Card.jsx") != nil {
			t.Error("input tree was modified")
		}
		if got.Items[0] != tree.Items[0] {
			t.Error("untouched index.js should be shared")
		}
		if got.Items[2] != tree.Items[2] {
			t.Error("untouched public folder should be shared")
		}
		if got.Items[1] == tree.Items[1] {
			t.Error("src is on the changed path and must be copied")
		}
	})

	t.Run("missing parent is a no-op", func(t *testing.T) {
		tree := testutil.SampleTree()
		if got := playground.Insert(tree, "nope", playground.NewFolder("x")); got != tree {
			t.Error("Insert into a missing folder should return the input")
		}
	})

	t.Run("file parent is a no-op", func(t *testing.T) {
		tree := testutil.SampleTree()
		if got := playground.Insert(tree, "index.js", playground.NewFolder("x")); got != tree {
			t.Error("Insert into a file should return the input")
		}
	})
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	tests := []struct {
		parent string
		node   *playground.Node
	}{
		{"", playground.NewFile("util", "js", "")},
		{"src", playground.NewFolder("hooks")},
		{"src/components", playground.NewFile("Card", "jsx", "x")},
		{"public", playground.NewFile("favicon", "ico", "")},
	}
	for _, tt := range tests {
		p := playground.JoinPath(tt.parent, tt.node.Name())
		t.Run(p, func(t *testing.T) {
			tree := testutil.SampleTree()
			got := playground.Delete(playground.Insert(tree, tt.parent, tt.node), p)
			if diff := cmp.Diff(tree, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	t.Run("removes a folder and its subtree", func(t *testing.T) {
		got := playground.Delete(testutil.SampleTree(), "src")
		want := []string{"index.js", "public"}
		if diff := cmp.Diff(want, testutil.Paths(t, got)); diff != "" {
			t.Errorf("paths mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("prefix exactness", func(t *testing.T) {
		tree := playground.NewRoot(
			playground.NewFolder("foo", playground.NewFile("a", "js", "")),
			playground.NewFolder("foo2", playground.NewFile("b", "js", "")),
		)
		got := playground.Delete(tree, "foo")
		want := []string{"foo2", "foo2/b.js"}
		if diff := cmp.Diff(want, testutil.Paths(t, got)); diff != "" {
			t.Errorf("paths mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing path returns the input", func(t *testing.T) {
		tree := testutil.SampleTree()
		for _, p := range []string{"foo/bar.js", "src/nope.js", "index.js/x", ""} {
			if got := playground.Delete(tree, p); got != tree {
				t.Errorf("Delete(%q) should return the input", p)
			}
		}
	})

	t.Run("on an empty tree", func(t *testing.T) {
		tree := playground.NewRoot()
		got := playground.Delete(tree, "foo/bar.js")
		if diff := cmp.Diff(tree, got); diff != "" {
			t.Errorf("Delete() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRename(t *testing.T) {
	t.Run("folder rename moves descendants", func(t *testing.T) {
		tree := playground.NewRoot(playground.NewFolder("src", playground.NewFile("App", "jsx", "a")))
		got := playground.Rename(tree, "src", "source", false, nil)

		if n := playground.Find(got, "source/App.jsx"); n == nil || n.Content != "a" {
			t.Errorf("source/App.jsx = %+v", n)
		}
		if playground.Find(got, "src/App.jsx") != nil {
			t.Error("old path still resolves")
		}
	})

	t.Run("rename and back", func(t *testing.T) {
		tree := testutil.SampleTree()
		there := playground.Rename(tree, "src/components", "widgets", false, nil)
		back := playground.Rename(there, "src/widgets", "components", false, nil)
		if diff := cmp.Diff(tree, back, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("rename round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file rename keeps extension when nil", func(t *testing.T) {
		got := playground.Rename(testutil.SampleTree(), "src/App.jsx", "Main", true, nil)
		if playground.Find(got, "src/Main.jsx") == nil {
			t.Errorf("paths = %v", testutil.Paths(t, got))
		}
	})

	t.Run("file rename with new extension", func(t *testing.T) {
		got := playground.Rename(testutil.SampleTree(), "src/App.jsx", "App", true, ptr("tsx"))
		if playground.Find(got, "src/App.tsx") == nil {
			t.Errorf("paths = %v", testutil.Paths(t, got))
		}
	})

	t.Run("kind mismatch is a no-op", func(t *testing.T) {
		tree := testutil.SampleTree()
		if got := playground.Rename(tree, "src", "x", true, nil); got != tree {
			t.Error("renaming a folder as a file should return the input")
		}
		if got := playground.Rename(tree, "index.js", "x", false, nil); got != tree {
			t.Error("renaming a file as a folder should return the input")
		}
	})

	t.Run("missing path is a no-op", func(t *testing.T) {
		tree := testutil.SampleTree()
		if got := playground.Rename(tree, "nope", "x", false, nil); got != tree {
			t.Error("renaming a missing path should return the input")
		}
	})

	t.Run("sibling order is kept", func(t *testing.T) {
		got := playground.Rename(testutil.SampleTree(), "index.js", "main", true, nil)
		want := []string{"main.js", "src", "public"}
		var names []string
		for _, n := range got.Items {
			names = append(names, n.Name())
		}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("root order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestUpdateContent(t *testing.T) {
	tree := testutil.SampleTree()
	got := playground.UpdateContent(tree, "src/util.js", "export {}")
	if n := playground.Find(got, "src/util.js"); n.Content != "export {}" {
		t.Errorf("content = %q", n.Content)
	}
	if n := playground.Find(tree, "src/util.js"); n.Content != "" {
		t.Error("input tree was modified")
	}
	if playground.UpdateContent(tree, "src", "x") != tree {
		t.Error("updating a folder should return the input")
	}
}

func TestFind(t *testing.T) {
	tree := testutil.SampleTree()
	if playground.Find(tree, "") != tree {
		t.Error("Find(\"\") should return the root")
	}
	if n := playground.Find(tree, "src/components/Button.jsx"); n == nil || n.Filename != "Button" {
		t.Errorf("Find(Button.jsx) = %+v", n)
	}
	if playground.Find(tree, "src/components/Button.jsx/x") != nil {
		t.Error("paths below a file should not resolve")
	}
}
