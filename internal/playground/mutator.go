package playground

// The tree mutator. Every function here is pure: it returns a new root that
// shares all untouched subtrees with the input and copies only the folders on
// the path from the root to the change. When the target path does not resolve
// the input root itself is returned, so callers can detect a no-op with ==.
// Sibling order is never changed; new items are appended.

// Insert appends n to the items of the folder at parentPath ("" is the root).
func Insert(root *Node, parentPath string, n *Node) *Node {
	if !root.IsFolder() || n == nil {
		return root
	}
	if parentPath == "" {
		out := root.shallowCopy()
		out.Items = append(out.Items, n)
		return out
	}
	return updateFolder(root, "", parentPath, func(folder *Node) *Node {
		out := folder.shallowCopy()
		out.Items = append(out.Items, n)
		return out
	})
}

// Delete removes every direct child whose path equals targetPath, at whatever
// depth that is. A deleted folder takes its whole subtree with it.
func Delete(root *Node, targetPath string) *Node {
	if !root.IsFolder() || targetPath == "" {
		return root
	}
	return deleteAt(root, "", targetPath)
}

func deleteAt(folder *Node, folderPath, target string) *Node {
	var kept []*Node
	removed := false
	for i, child := range folder.Items {
		childPath := JoinPath(folderPath, child.Name())
		if childPath == target {
			if !removed {
				kept = append(make([]*Node, 0, len(folder.Items)-1), folder.Items[:i]...)
				removed = true
			}
			continue
		}
		if removed {
			kept = append(kept, child)
		}
	}
	if removed {
		out := *folder
		out.Items = kept
		return &out
	}

	for i, child := range folder.Items {
		if child.Kind != KindFolder {
			continue
		}
		childPath := JoinPath(folderPath, child.FolderName)
		if !IsWithin(target, childPath) {
			continue
		}
		if updated := deleteAt(child, childPath, target); updated != child {
			return folder.withItem(i, updated)
		}
	}
	return folder
}

// Rename gives the node at targetPath a new name. For folders newName is the
// folder name; for files it is the filename and newExtension, when non-nil,
// replaces the extension. isFile must match the node's kind or nothing
// happens. Descendants store names, not paths, so renaming a folder moves its
// whole subtree without touching it.
func Rename(root *Node, targetPath, newName string, isFile bool, newExtension *string) *Node {
	return updateNode(root, targetPath, func(n *Node) *Node {
		switch n.Kind {
		case KindFile:
			if !isFile {
				return n
			}
			out := *n
			out.Filename = newName
			if newExtension != nil {
				out.Extension = *newExtension
			}
			return &out
		case KindFolder:
			if isFile {
				return n
			}
			out := *n
			out.FolderName = newName
			return &out
		}
		return n
	})
}

// UpdateContent replaces the content of the file at targetPath.
func UpdateContent(root *Node, targetPath, content string) *Node {
	return updateNode(root, targetPath, func(n *Node) *Node {
		if n.Kind != KindFile {
			return n
		}
		out := *n
		out.Content = content
		return &out
	})
}

// Find returns the node at p, or nil. The empty path is the root.
func Find(root *Node, p string) *Node {
	if p == "" {
		return root
	}
	cur := root
	path := ""
	for cur.IsFolder() {
		var next *Node
		for _, child := range cur.Items {
			childPath := JoinPath(path, child.Name())
			if childPath == p {
				return child
			}
			if child.Kind == KindFolder && IsWithin(p, childPath) {
				next = child
				path = childPath
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return nil
}

// Walk calls fn for every node below root in pre-order with its path.
func Walk(root *Node, fn func(path string, n *Node)) {
	var walk func(folder *Node, folderPath string)
	walk = func(folder *Node, folderPath string) {
		for _, child := range folder.Items {
			childPath := JoinPath(folderPath, child.Name())
			fn(childPath, child)
			if child.Kind == KindFolder {
				walk(child, childPath)
			}
		}
	}
	if root.IsFolder() {
		walk(root, "")
	}
}

// updateNode replaces the node at targetPath with fn(node).
func updateNode(root *Node, targetPath string, fn func(*Node) *Node) *Node {
	if !root.IsFolder() || targetPath == "" {
		return root
	}
	parentPath := ParentPath(targetPath)
	update := func(folder *Node) *Node {
		for i, child := range folder.Items {
			if JoinPath(parentPath, child.Name()) != targetPath {
				continue
			}
			if updated := fn(child); updated != child {
				return folder.withItem(i, updated)
			}
			return folder
		}
		return folder
	}
	if parentPath == "" {
		return update(root)
	}
	return updateFolder(root, "", parentPath, update)
}

// updateFolder finds the folder at target below folder (whose own path is
// folderPath) and replaces it with fn(folder). A child is a candidate when its
// path equals target or is a proper prefix of it.
func updateFolder(folder *Node, folderPath, target string, fn func(*Node) *Node) *Node {
	for i, child := range folder.Items {
		if child.Kind != KindFolder {
			continue
		}
		childPath := JoinPath(folderPath, child.FolderName)
		var updated *Node
		switch {
		case childPath == target:
			updated = fn(child)
		case IsWithin(target, childPath):
			updated = updateFolder(child, childPath, target, fn)
		default:
			continue
		}
		if updated != child {
			return folder.withItem(i, updated)
		}
	}
	return folder
}
