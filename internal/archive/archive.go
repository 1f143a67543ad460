// Package archive exports projects as template documents and imports them
// back. Archives can be encrypted with a passphrase and are kept in a Sink.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"playground-go/internal/playground"
)

// FormatVersion is written to every archive.
const FormatVersion = 1

// Document is the content of one archive.
type Document struct {
	Version     int
	Title       string
	Description string
	Template    string
	ExportedAt  time.Time
	Root        *playground.Node
}

type wireDocument struct {
	Version     int             `json:"version"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Template    string          `json:"template,omitempty"`
	ExportedAt  time.Time       `json:"exportedAt"`
	Root        json.RawMessage `json:"root"`
}

// Encode writes doc as JSON, encrypted when passphrase is not empty.
func Encode(w io.Writer, doc Document, passphrase string) error {
	if !doc.Root.IsFolder() {
		return fmt.Errorf("archive root must be a folder")
	}
	root, err := json.Marshal(doc.Root)
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}
	wire := wireDocument{
		Version:     doc.Version,
		Title:       doc.Title,
		Description: doc.Description,
		Template:    doc.Template,
		ExportedAt:  doc.ExportedAt,
		Root:        root,
	}
	if wire.Version == 0 {
		wire.Version = FormatVersion
	}

	if passphrase == "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(wire)
	}

	encWriter, err := encrypt(w, passphrase)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(encWriter).Encode(wire); err != nil {
		return fmt.Errorf("encrypting archive: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decode reads an archive. Encrypted archives need the passphrase; plain
// ones ignore it. Content coerced while decoding the tree is reported.
func Decode(r io.Reader, passphrase string) (*Document, []playground.Warning, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive: %w", err)
	}
	if IsEncrypted(data) {
		if passphrase == "" {
			return nil, nil, ErrPassphraseRequired
		}
		if data, err = decrypt(data, passphrase); err != nil {
			return nil, nil, err
		}
	}

	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, nil, fmt.Errorf("decoding archive: %w", err)
	}
	if wire.Version > FormatVersion {
		return nil, nil, fmt.Errorf("archive version %d is newer than supported version %d", wire.Version, FormatVersion)
	}
	if len(wire.Root) == 0 {
		return nil, nil, fmt.Errorf("archive has no root")
	}
	root, warnings, err := playground.DecodeTemplate(wire.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding tree: %w", err)
	}

	return &Document{
		Version:     wire.Version,
		Title:       wire.Title,
		Description: wire.Description,
		Template:    wire.Template,
		ExportedAt:  wire.ExportedAt,
		Root:        root,
	}, warnings, nil
}

// Archiver moves projects between a Service and a Sink.
type Archiver struct {
	sink   Sink
	svc    *playground.Service
	logger playground.Logger
	clock  playground.Clock
}

func NewArchiver(sink Sink, svc *playground.Service, logger playground.Logger, clock playground.Clock) *Archiver {
	if logger == nil {
		logger = playground.NewNopLogger()
	}
	return &Archiver{sink: sink, svc: svc, logger: logger, clock: clock}
}

// Export stores the project's current tree in the sink and returns the
// archive name. An empty name is derived from the title and export time.
func (a *Archiver) Export(ctx context.Context, projectID, name, passphrase string) (string, error) {
	sess, err := a.svc.Open(ctx, projectID)
	if err != nil {
		return "", err
	}
	p, err := a.svc.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	now := a.clock.Now().UTC()
	if name == "" {
		name = ArchiveName(p.Title, now, passphrase != "")
	}

	var buf bytes.Buffer
	doc := Document{
		Title:       p.Title,
		Description: p.Description,
		Template:    p.Template,
		ExportedAt:  now,
		Root:        sess.Tree(),
	}
	if err := Encode(&buf, doc, passphrase); err != nil {
		return "", err
	}
	size := buf.Len()
	if err := a.sink.Put(ctx, name, &buf); err != nil {
		return "", fmt.Errorf("storing archive: %w", err)
	}

	a.logger.Info("project exported", "project", projectID, "archive", name, "bytes", size, "encrypted", passphrase != "")
	return name, nil
}

// Import creates a new project for userID from the named archive.
// A non-empty title replaces the archived one.
func (a *Archiver) Import(ctx context.Context, name, passphrase, userID, title string) (*playground.Project, error) {
	var buf bytes.Buffer
	if err := a.sink.Get(ctx, name, &buf); err != nil {
		return nil, err
	}
	doc, warnings, err := Decode(&buf, passphrase)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		a.logger.Warn("archive content coerced", "archive", name, "path", w.Path, "reason", w.Message)
	}
	if title == "" {
		title = doc.Title
	}

	p, err := a.svc.ImportProject(ctx, title, doc.Template, doc.Description, userID, doc.Root)
	if err != nil {
		return nil, err
	}
	a.logger.Info("project imported from archive", "archive", name, "project", p.ID)
	return p, nil
}

// List returns the names of stored archives.
func (a *Archiver) List(ctx context.Context) ([]string, error) {
	return a.sink.List(ctx)
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// ArchiveName builds a file-safe archive name such as
// "my-app-20250301-090000.json".
func ArchiveName(title string, at time.Time, encrypted bool) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "project"
	}
	name := slug + "-" + at.Format("20060102-150405") + ".json"
	if encrypted {
		name += EncryptedExt
	}
	return name
}
