package playground

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Templates and tree responses share one JSON shape:
//
//	{"folderName": "src", "items": [...]}
//	{"filename": "App", "fileExtension": "jsx", "content": "..."}
//
// A JSON object is a folder when it carries "folderName" or "items".

type templateFolder struct {
	FolderName string  `json:"folderName"`
	Items      []*Node `json:"items"`
}

type templateFile struct {
	Filename      string `json:"filename"`
	FileExtension string `json:"fileExtension"`
	Content       string `json:"content"`
}

// MarshalJSON encodes n in the template shape.
func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindFolder:
		items := n.Items
		if items == nil {
			items = []*Node{}
		}
		return json.Marshal(templateFolder{FolderName: n.FolderName, Items: items})
	case KindFile:
		return json.Marshal(templateFile{Filename: n.Filename, FileExtension: n.Extension, Content: n.Content})
	default:
		return nil, fmt.Errorf("cannot encode node of kind %d", n.Kind)
	}
}

type rawTemplateItem struct {
	FolderName    *string           `json:"folderName"`
	Items         []json.RawMessage `json:"items"`
	Filename      string            `json:"filename"`
	FileExtension string            `json:"fileExtension"`
	Content       json.RawMessage   `json:"content"`
}

// DecodeTemplate parses a template document into a tree.
// Content that is not a JSON string is converted to its text form and
// reported as a warning; null or missing content becomes "".
func DecodeTemplate(data []byte) (*Node, []Warning, error) {
	var warnings []Warning
	root, err := decodeItem(data, "", true, &warnings)
	if err != nil {
		return nil, nil, err
	}
	if root.Kind != KindFolder {
		return nil, nil, fmt.Errorf("template root must be a folder")
	}
	return root, warnings, nil
}

func decodeItem(data []byte, parentPath string, isRoot bool, warnings *[]Warning) (*Node, error) {
	var raw rawTemplateItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding template item under %q: %w", parentPath, err)
	}

	if raw.FolderName != nil || raw.Items != nil {
		name := ""
		if raw.FolderName != nil {
			name = *raw.FolderName
		}
		folder := NewFolder(name)
		folderPath := ""
		if !isRoot {
			folderPath = FolderPath(parentPath, name)
		}
		for _, itemData := range raw.Items {
			child, err := decodeItem(itemData, folderPath, false, warnings)
			if err != nil {
				return nil, err
			}
			folder.Items = append(folder.Items, child)
		}
		return folder, nil
	}

	content, coerced := DecodeContent(raw.Content)
	if coerced {
		*warnings = append(*warnings, Warning{
			Path:    FilePath(parentPath, raw.Filename, raw.FileExtension),
			Message: ContentCoerced,
		})
	}
	return NewFile(raw.Filename, raw.FileExtension, content), nil
}

// ContentCoerced is the warning for non-string content turned into text.
const ContentCoerced = "content is not a string, converted to text"

// DecodeContent turns a raw JSON content value into text. Strings decode
// normally and null or empty input yields "". Any other value is rendered as
// its compact JSON text (12345 becomes "12345") and coerced is true.
func DecodeContent(raw json.RawMessage) (content string, coerced bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s, false
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed), true
	}
	return buf.String(), true
}
