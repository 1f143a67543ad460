package playground

// BuildTree reconstructs the nested tree from flat records.
//
// The first pass creates one folder node per folder record, plus the root
// keyed by "". The second pass walks the records in their given order and
// appends each one to its parent folder, so sibling order follows record
// order. A record whose parent path does not name a folder in the set is
// attached to the root and logged rather than dropped.
func BuildTree(records []Record, logger Logger) *Node {
	if logger == nil {
		logger = NewNopLogger()
	}

	root := NewRoot()
	folders := map[string]*Node{"": root}
	parents := make(map[string]string)

	for _, r := range records {
		if !r.IsFolder {
			continue
		}
		if r.Path == "" {
			logger.Warn("folder record without a path ignored", "id", r.ID)
			continue
		}
		if _, exists := folders[r.Path]; exists {
			logger.Warn("duplicate folder record ignored", "path", r.Path)
			continue
		}
		folders[r.Path] = NewFolder(r.Filename)
		parents[r.Path] = r.ParentPath
	}

	attached := make(map[string]bool)
	for _, r := range records {
		if r.IsFolder {
			if r.Path == "" || attached[r.Path] {
				continue
			}
			node := folders[r.Path]
			attached[r.Path] = true

			parent, ok := folders[r.ParentPath]
			if !ok || inCycle(r.Path, parents) {
				logger.Warn("orphaned folder attached to root", "path", r.Path, "parent_path", r.ParentPath)
				parent = root
			}
			parent.Items = append(parent.Items, node)
			continue
		}

		parent, ok := folders[r.ParentPath]
		if !ok {
			logger.Warn("orphaned file attached to root", "path", r.Path, "parent_path", r.ParentPath)
			parent = root
		}
		parent.Items = append(parent.Items, NewFile(r.Filename, r.Extension, r.Content))
	}

	return root
}

// inCycle reports whether following parent links from p leads back to p.
// A chain that runs into some other loop is not p's cycle; that loop is
// broken when its own members are attached.
func inCycle(p string, parents map[string]string) bool {
	seen := map[string]bool{p: true}
	cur := p
	for {
		next, ok := parents[cur]
		if !ok || next == "" {
			return false
		}
		if next == p {
			return true
		}
		if seen[next] {
			return false
		}
		seen[next] = true
		cur = next
	}
}

// Flatten produces the records a store would hold for the tree, in pre-order:
// every folder precedes its contents and siblings keep their order.
// IDs and timestamps are left for the caller to fill in.
func Flatten(root *Node, playgroundID string) []Record {
	var out []Record
	var walk func(folder *Node, folderPath string)
	walk = func(folder *Node, folderPath string) {
		for _, child := range folder.Items {
			rec := newRecord(playgroundID, folderPath, child)
			out = append(out, rec)
			if child.Kind == KindFolder {
				walk(child, rec.Path)
			}
		}
	}
	if root.IsFolder() {
		walk(root, "")
	}
	return out
}
