package playground

import "slices"

// RootName is the folder name given to the synthetic root of every project tree.
// It never appears in computed paths.
const RootName = "Root"

// Kind discriminates the two Node variants.
type Kind int

const (
	KindFile Kind = iota + 1
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Node is a file or a folder in a project tree.
// Kind decides which fields are meaningful: files use Filename, Extension and
// Content; folders use FolderName and Items.
//
// Trees are persistent values. The functions in this package never modify a
// Node reachable from a tree they were given; they copy the path from the
// root to the changed node and share every untouched subtree. Callers must
// treat nodes obtained from a tree as read-only.
type Node struct {
	Kind Kind

	Filename  string
	Extension string
	Content   string

	FolderName string
	Items      []*Node
}

// NewFile creates a file node.
func NewFile(filename, extension, content string) *Node {
	return &Node{Kind: KindFile, Filename: filename, Extension: extension, Content: content}
}

// NewFolder creates a folder node holding the given items in order.
func NewFolder(name string, items ...*Node) *Node {
	return &Node{Kind: KindFolder, FolderName: name, Items: items}
}

// NewRoot creates an empty project root.
func NewRoot(items ...*Node) *Node {
	return NewFolder(RootName, items...)
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool {
	return n != nil && n.Kind == KindFolder
}

// Name returns the path segment identifying n within its parent:
// the folder name, or filename.extension for files.
func (n *Node) Name() string {
	switch n.Kind {
	case KindFolder:
		return n.FolderName
	case KindFile:
		return FileName(n.Filename, n.Extension)
	default:
		return ""
	}
}

// shallowCopy returns a copy of n with its own Items slice.
// Children are shared.
func (n *Node) shallowCopy() *Node {
	cp := *n
	cp.Items = slices.Clone(n.Items)
	return &cp
}

// withItem returns a copy of folder n with the child at index i replaced.
func (n *Node) withItem(i int, child *Node) *Node {
	cp := n.shallowCopy()
	cp.Items[i] = child
	return cp
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Items != nil {
		cp.Items = make([]*Node, len(n.Items))
		for i, child := range n.Items {
			cp.Items[i] = child.Clone()
		}
	}
	return &cp
}
