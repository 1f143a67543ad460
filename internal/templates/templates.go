// Package templates holds the starter projects new playgrounds are seeded
// from. Each template is a JSON document in the tree's template shape.
package templates

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"playground-go/internal/playground"
)

//go:embed files/*.json
var files embed.FS

// Default is used for an empty or unknown template name.
const Default = "default"

// startScripts maps templates to the npm script that serves them.
var startScripts = map[string]string{
	"REACT":   "dev",
	"NEXTJS":  "dev",
	"EXPRESS": "start",
	"VUE":     "dev",
}

// Library serves fresh copies of the embedded templates.
type Library struct {
	docs   map[string][]byte
	logger playground.Logger
}

var _ playground.TemplateSource = (*Library)(nil)

// New loads and validates every embedded template.
func New(logger playground.Logger) (*Library, error) {
	if logger == nil {
		logger = playground.NewNopLogger()
	}

	entries, err := files.ReadDir("files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded templates: %w", err)
	}

	docs := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := files.ReadFile(path.Join("files", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		if _, _, err := playground.DecodeTemplate(data); err != nil {
			return nil, fmt.Errorf("template %s: %w", e.Name(), err)
		}
		name := strings.ToUpper(strings.TrimSuffix(e.Name(), ".json"))
		docs[name] = data
	}
	if _, ok := docs[strings.ToUpper(Default)]; !ok {
		return nil, fmt.Errorf("default template missing")
	}

	return &Library{docs: docs, logger: logger}, nil
}

// Names returns the selectable template names, excluding the default.
func (l *Library) Names() []string {
	var names []string
	for name := range l.docs {
		if name != strings.ToUpper(Default) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a known template. Names are case-insensitive.
func (l *Library) Has(name string) bool {
	_, ok := l.docs[strings.ToUpper(name)]
	return ok
}

// Template returns a new tree for the named template. Each call decodes the
// document again, so callers own the result.
func (l *Library) Template(name string) (*playground.Node, error) {
	key := strings.ToUpper(name)
	data, ok := l.docs[key]
	if !ok {
		if name != "" {
			l.logger.Debug("unknown template, using default", "template", name)
		}
		data = l.docs[strings.ToUpper(Default)]
	}

	root, warnings, err := playground.DecodeTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("decoding template %q: %w", name, err)
	}
	for _, w := range warnings {
		l.logger.Warn("template content coerced", "template", name, "path", w.Path, "reason", w.Message)
	}
	return root, nil
}

// StartScript returns the npm script that starts the template's server.
func (l *Library) StartScript(name string) string {
	if s, ok := startScripts[strings.ToUpper(name)]; ok {
		return s
	}
	return "start"
}
