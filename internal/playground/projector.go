package playground

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultLargeFileThreshold is the content length, in characters, above which
// the projector warns about a file. Large files are still projected in full.
const DefaultLargeFileThreshold = 5_000_000

// MountTree is the directory/file map a sandbox runtime mounts: keys are
// file segments (filename.extension) or folder names.
type MountTree map[string]MountEntry

// MountEntry is either a file or a directory. Exactly one field is set.
type MountEntry struct {
	File      *MountFile
	Directory MountTree
}

// MountFile wraps the text content of one file.
type MountFile struct {
	Contents string `json:"contents"`
}

// MarshalJSON renders {"file":{"contents":...}} or {"directory":{...}}.
func (e MountEntry) MarshalJSON() ([]byte, error) {
	if e.File != nil {
		return json.Marshal(struct {
			File *MountFile `json:"file"`
		}{e.File})
	}
	dir := e.Directory
	if dir == nil {
		dir = MountTree{}
	}
	return json.Marshal(struct {
		Directory MountTree `json:"directory"`
	}{dir})
}

func (e *MountEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		File      *MountFile `json:"file"`
		Directory MountTree  `json:"directory"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.File == nil && raw.Directory == nil {
		return fmt.Errorf("mount entry has neither file nor directory")
	}
	e.File = raw.File
	e.Directory = raw.Directory
	return nil
}

// Warning describes a non-fatal problem found while preparing content.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}

// Projector transforms project trees into sandbox mount trees.
// It performs no I/O.
type Projector struct {
	logger    Logger
	threshold int
}

// NewProjector creates a Projector. A non-positive threshold selects
// DefaultLargeFileThreshold.
func NewProjector(logger Logger, threshold int) *Projector {
	if logger == nil {
		logger = NewNopLogger()
	}
	if threshold <= 0 {
		threshold = DefaultLargeFileThreshold
	}
	return &Projector{logger: logger, threshold: threshold}
}

// Project converts the tree below root into a MountTree.
// Content that is not valid UTF-8 text is coerced and reported; oversized
// files are reported. Neither ever causes data to be dropped.
func (p *Projector) Project(root *Node) (MountTree, []Warning) {
	var warnings []Warning
	warn := func(path, format string, args ...any) {
		w := Warning{Path: path, Message: fmt.Sprintf(format, args...)}
		warnings = append(warnings, w)
		p.logger.Warn("projection warning", "path", path, "reason", w.Message)
	}

	var project func(folder *Node, folderPath string) MountTree
	project = func(folder *Node, folderPath string) MountTree {
		out := make(MountTree, len(folder.Items))
		for _, child := range folder.Items {
			key := child.Name()
			childPath := JoinPath(folderPath, key)
			if _, dup := out[key]; dup {
				warn(childPath, "duplicate name, later item replaces earlier one")
			}

			switch child.Kind {
			case KindFolder:
				out[key] = MountEntry{Directory: project(child, childPath)}
			case KindFile:
				contents := child.Content
				if !utf8.ValidString(contents) {
					contents = strings.ToValidUTF8(contents, string(utf8.RuneError))
					warn(childPath, "content is not valid text, invalid bytes replaced")
				}
				if n := utf8.RuneCountInString(contents); n > p.threshold {
					warn(childPath, "very large file (%d characters)", n)
				}
				out[key] = MountEntry{File: &MountFile{Contents: contents}}
			default:
				warn(childPath, "unknown node kind %d skipped", child.Kind)
			}
		}
		return out
	}

	if !root.IsFolder() {
		return MountTree{}, nil
	}
	return project(root, ""), warnings
}
