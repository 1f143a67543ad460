package testutil

import (
	"testing"

	"playground-go/internal/playground"
)

// SampleTree returns a small React-like project:
//
//	index.js
//	src/App.jsx
//	src/components/Button.jsx
//	src/util.js
//	public/
func SampleTree() *playground.Node {
	return playground.NewRoot(
		playground.NewFile("index", "js", "import './src/App'"),
		playground.NewFolder("src",
			playground.NewFile("App", "jsx", "export default function App() {}"),
			playground.NewFolder("components",
				playground.NewFile("Button", "jsx", "export const Button = () => null"),
			),
			playground.NewFile("util", "js", ""),
		),
		playground.NewFolder("public"),
	)
}

// TemplateMap is a TemplateSource backed by fixed trees. Unknown names
// resolve to the "default" entry.
type TemplateMap map[string]*playground.Node

func (m TemplateMap) Template(name string) (*playground.Node, error) {
	root, ok := m[name]
	if !ok {
		root = m["default"]
	}
	if root == nil {
		return playground.NewRoot(), nil
	}
	return root.Clone(), nil
}

// Paths lists the paths of every node below root in walk order.
func Paths(t *testing.T, root *playground.Node) []string {
	t.Helper()
	var paths []string
	playground.Walk(root, func(p string, n *playground.Node) {
		paths = append(paths, p)
	})
	return paths
}
