package playground

import (
	"context"
	"time"
)

// Project is one playground: a titled tree of files owned by a user.
type Project struct {
	ID          string
	Title       string
	Description string
	Template    string
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Starred is filled in by ListProjects and GetProject for the owner.
	Starred bool
}

// Store provides persistence for projects and their flat file records.
// Lookups that find nothing return nil, nil. Implementations keep paths
// unique per project and report a clash with ErrConflict.
type Store interface {
	// Project operations

	// CreateProject stores p together with its initial records in one transaction.
	CreateProject(ctx context.Context, p *Project, records []Record) error

	// GetProject returns the project with the given id.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects returns the projects owned by userID, most recently updated first.
	ListProjects(ctx context.Context, userID string) ([]*Project, error)

	// UpdateProject changes the title and description of a project.
	UpdateProject(ctx context.Context, id, title, description string, at time.Time) error

	// DeleteProject removes a project and all of its records.
	DeleteProject(ctx context.Context, id string) error

	// SetStar marks or unmarks a project for a user.
	SetStar(ctx context.Context, projectID, userID string, marked bool) error

	// Record operations

	// ListRecords returns every record of a project in insertion order.
	ListRecords(ctx context.Context, projectID string) ([]Record, error)

	// CreateRecords inserts records in one transaction.
	CreateRecords(ctx context.Context, records []Record) error

	// UpdateContent replaces the content of the file at path.
	// Returns ErrNotFound when no file has that path.
	UpdateContent(ctx context.Context, projectID, path, content string, at time.Time) error

	// DeleteByPath removes the record at path and every record below it.
	// Returns the number of rows removed.
	DeleteByPath(ctx context.Context, projectID, path string) (int64, error)

	// RenameFile moves the file at oldPath to a new filename and extension
	// within the same parent and returns the new path.
	RenameFile(ctx context.Context, projectID, oldPath, filename, extension string, at time.Time) (string, error)

	// RenameFolder moves the folder at oldPath to newName within the same
	// parent, rewriting every descendant row in the same transaction.
	// Returns the new path.
	RenameFolder(ctx context.Context, projectID, oldPath, newName string, at time.Time) (string, error)

	// Close releases the underlying connection.
	Close() error
}

// TemplateSource supplies starter trees for new projects.
type TemplateSource interface {
	// Template returns a fresh tree for the named template. Unknown names
	// yield the default template.
	Template(name string) (*Node, error)
}
