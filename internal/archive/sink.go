package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrArchiveNotFound is returned when a sink has no archive with the given name.
var ErrArchiveNotFound = errors.New("archive not found")

// Sink stores exported project archives by name.
type Sink interface {
	// Put stores the archive read from r, replacing any archive of the same name.
	Put(ctx context.Context, name string, r io.Reader) error

	// Get writes the named archive to w.
	Get(ctx context.Context, name string, w io.Writer) error

	// List returns archive names in sorted order.
	List(ctx context.Context) ([]string, error)
}

// validateName accepts a single path segment.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("invalid archive name %q", name)
	}
	return nil
}
