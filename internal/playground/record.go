package playground

import "time"

// Record is the flat, persisted form of one node: one row per file or folder,
// addressed by its full path within a playground.
// The flat table is the durable source of truth; trees are rebuilt from it.
type Record struct {
	ID           string
	PlaygroundID string
	Path         string
	ParentPath   string // "" for top-level nodes (stored as NULL)
	IsFolder     bool
	Filename     string // folder name for folders
	Extension    string
	Content      string
	UpdatedAt    time.Time
}

// Node converts the record into a detached tree node without children.
func (r Record) Node() *Node {
	if r.IsFolder {
		return NewFolder(r.Filename)
	}
	return NewFile(r.Filename, r.Extension, r.Content)
}

// newRecord builds the record for node n stored at parentPath.
func newRecord(playgroundID, parentPath string, n *Node) Record {
	r := Record{
		PlaygroundID: playgroundID,
		Path:         JoinPath(parentPath, n.Name()),
		ParentPath:   parentPath,
		IsFolder:     n.IsFolder(),
	}
	if r.IsFolder {
		r.Filename = n.FolderName
	} else {
		r.Filename = n.Filename
		r.Extension = n.Extension
		r.Content = n.Content
	}
	return r
}
