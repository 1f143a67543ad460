package playground

import (
	"fmt"
	"strings"
)

// Paths are derived, never stored on a node: the ancestor folder names and
// the node's own name joined with "/". The root has the empty path.
//
// File names split on the LAST '.': "my.component.jsx" is filename
// "my.component" with extension "jsx". ValidateFileName rejects the inputs for
// which that split would not reproduce the original parts, so every path built
// by FilePath round-trips through SplitFilePath.

// JoinPath joins a parent path and a single segment.
func JoinPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// FolderPath returns the path of folder folderName under parentPath.
func FolderPath(parentPath, folderName string) string {
	return JoinPath(parentPath, folderName)
}

// FileName returns the path segment of a file: filename.extension, or just
// filename when the extension is empty.
func FileName(filename, extension string) string {
	if extension == "" {
		return filename
	}
	return filename + "." + extension
}

// FilePath returns the path of a file under parentPath.
func FilePath(parentPath, filename, extension string) string {
	return JoinPath(parentPath, FileName(filename, extension))
}

// ParentPath returns everything before the last '/', or "" for top-level paths.
func ParentPath(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// BaseName returns the last segment of p.
func BaseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

// SplitName splits a file segment on its last '.'.
func SplitName(name string) (filename, extension string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// SplitFilePath is the inverse of FilePath.
func SplitFilePath(p string) (parentPath, filename, extension string) {
	filename, extension = SplitName(BaseName(p))
	return ParentPath(p), filename, extension
}

// IsWithin reports whether p is strictly below ancestor.
// The separator is part of the match, so "foo2/x" is not within "foo".
func IsWithin(p, ancestor string) bool {
	if ancestor == "" {
		return p != ""
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// ValidateFolderName checks that name can be used as a single path segment.
func ValidateFolderName(name string) error {
	if err := validateSegment(name); err != nil {
		return fmt.Errorf("%w: folder %q: %v", ErrInvalidName, name, err)
	}
	return nil
}

// ValidateFileName checks that filename and extension produce a segment that
// splits back into the same parts.
func ValidateFileName(filename, extension string) error {
	name := FileName(filename, extension)
	if err := validateSegment(name); err != nil {
		return fmt.Errorf("%w: file %q: %v", ErrInvalidName, name, err)
	}
	if strings.Contains(extension, ".") {
		return fmt.Errorf("%w: extension %q contains '.'", ErrInvalidName, extension)
	}
	if extension == "" && strings.Contains(filename, ".") {
		return fmt.Errorf("%w: file %q has a '.' but no extension", ErrInvalidName, filename)
	}
	return nil
}

// ValidateFilePath checks that every segment of p is a valid name and that
// the last one splits into a filename and extension that rebuild p.
func ValidateFilePath(p string) error {
	parent, filename, extension := SplitFilePath(p)
	if FilePath(parent, filename, extension) != p {
		return fmt.Errorf("%w: file path %q does not round-trip", ErrInvalidName, p)
	}
	if parent != "" {
		for _, seg := range strings.Split(parent, "/") {
			if err := ValidateFolderName(seg); err != nil {
				return err
			}
		}
	}
	return ValidateFileName(filename, extension)
}

// ValidateTree checks every name below root and that no two siblings
// resolve to the same path.
func ValidateTree(root *Node) error {
	return validateItems(root, "")
}

func validateItems(folder *Node, folderPath string) error {
	seen := make(map[string]bool, len(folder.Items))
	for _, n := range folder.Items {
		var p string
		switch n.Kind {
		case KindFolder:
			if err := ValidateFolderName(n.FolderName); err != nil {
				return fmt.Errorf("%w (under %q)", err, folderPath)
			}
			p = FolderPath(folderPath, n.FolderName)
		case KindFile:
			if err := ValidateFileName(n.Filename, n.Extension); err != nil {
				return fmt.Errorf("%w (under %q)", err, folderPath)
			}
			p = FilePath(folderPath, n.Filename, n.Extension)
		default:
			return fmt.Errorf("%w: unknown node kind under %q", ErrInvalidName, folderPath)
		}
		if seen[p] {
			return fmt.Errorf("%w: %s", ErrConflict, p)
		}
		seen[p] = true
		if n.Kind == KindFolder {
			if err := validateItems(n, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSegment(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("reserved name")
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("contains a path separator")
	}
	return nil
}
