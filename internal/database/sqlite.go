package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"playground-go/internal/database/migrations"
	"playground-go/internal/playground"
)

// SQLiteStore implements playground.Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	queries *queries
	path    string
}

var _ playground.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path, brings its schema up to date
// and returns the store. path can be a file path or ":memory:".
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := migrations.MigrateUp(db, migrations.SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteStore{db: db, queries: newQueries(db), path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing, already migrated connection.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, queries: newQueries(db)}
}

// connectionParams are applied to every pooled connection. SQLite ships
// with foreign keys off and project deletes rely on their cascades.
const connectionParams = "_foreign_keys=on&_busy_timeout=5000"

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a separate empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connectionParams
	}
	return path + "?" + connectionParams
}

// withTx runs fn inside a transaction, committing when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(q *queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.withTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Project operations

func (s *SQLiteStore) CreateProject(ctx context.Context, p *playground.Project, records []playground.Record) error {
	return s.withTx(ctx, func(q *queries) error {
		if err := q.InsertPlayground(ctx, p); err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}
		for _, r := range records {
			if err := q.InsertTemplateFile(ctx, r); err != nil {
				return fmt.Errorf("inserting %q: %w", r.Path, translateError(err))
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*playground.Project, error) {
	p, err := s.queries.GetPlayground(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]*playground.Project, error) {
	projects, err := s.queries.ListPlaygroundsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, id, title, description string, at time.Time) error {
	n, err := s.queries.UpdatePlayground(ctx, id, title, description, at)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", playground.ErrProjectNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	if err := s.queries.DeletePlayground(ctx, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetStar(ctx context.Context, projectID, userID string, marked bool) error {
	if err := s.queries.UpsertStarMark(ctx, projectID, userID, marked); err != nil {
		return fmt.Errorf("setting star: %w", err)
	}
	return nil
}

// Record operations

func (s *SQLiteStore) ListRecords(ctx context.Context, projectID string) ([]playground.Record, error) {
	records, err := s.queries.ListTemplateFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) CreateRecords(ctx context.Context, records []playground.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q *queries) error {
		for _, r := range records {
			if err := q.InsertTemplateFile(ctx, r); err != nil {
				return fmt.Errorf("inserting %q: %w", r.Path, translateError(err))
			}
		}
		return q.TouchPlayground(ctx, records[0].PlaygroundID, records[len(records)-1].UpdatedAt)
	})
}

func (s *SQLiteStore) UpdateContent(ctx context.Context, projectID, path, content string, at time.Time) error {
	return s.withTx(ctx, func(q *queries) error {
		n, err := q.UpdateTemplateFileContent(ctx, projectID, path, content, at)
		if err != nil {
			return fmt.Errorf("updating content: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: file %q", playground.ErrNotFound, path)
		}
		return q.TouchPlayground(ctx, projectID, at)
	})
}

func (s *SQLiteStore) DeleteByPath(ctx context.Context, projectID, path string) (int64, error) {
	n, err := s.queries.DeleteTemplateFilesByPath(ctx, projectID, path)
	if err != nil {
		return 0, fmt.Errorf("deleting %q: %w", path, err)
	}
	return n, nil
}

func (s *SQLiteStore) RenameFile(ctx context.Context, projectID, oldPath, filename, extension string, at time.Time) (string, error) {
	var newPath string
	err := s.withTx(ctx, func(q *queries) error {
		r, err := q.GetTemplateFileByPath(ctx, projectID, oldPath)
		if err != nil {
			return fmt.Errorf("finding %q: %w", oldPath, err)
		}
		if r == nil {
			return fmt.Errorf("%w: file %q", playground.ErrNotFound, oldPath)
		}
		if r.IsFolder {
			return fmt.Errorf("%w: %q", playground.ErrNotFile, oldPath)
		}

		newPath = playground.FilePath(r.ParentPath, filename, extension)
		if err := q.UpdateTemplateFileName(ctx, projectID, oldPath, newPath, filename, extension, at); err != nil {
			return fmt.Errorf("renaming %q: %w", oldPath, translateError(err))
		}
		return q.TouchPlayground(ctx, projectID, at)
	})
	if err != nil {
		return "", err
	}
	return newPath, nil
}

func (s *SQLiteStore) RenameFolder(ctx context.Context, projectID, oldPath, newName string, at time.Time) (string, error) {
	var newPath string
	err := s.withTx(ctx, func(q *queries) error {
		r, err := q.GetTemplateFileByPath(ctx, projectID, oldPath)
		if err != nil {
			return fmt.Errorf("finding %q: %w", oldPath, err)
		}
		if r == nil {
			return fmt.Errorf("%w: folder %q", playground.ErrNotFound, oldPath)
		}
		if !r.IsFolder {
			return fmt.Errorf("%w: %q", playground.ErrNotFolder, oldPath)
		}

		newPath = playground.FolderPath(r.ParentPath, newName)
		taken, err := q.CountPathOrBelow(ctx, projectID, newPath)
		if err != nil {
			return fmt.Errorf("checking %q: %w", newPath, err)
		}
		if taken > 0 {
			return fmt.Errorf("%w: %q", playground.ErrConflict, newPath)
		}

		if err := q.UpdateTemplateFileName(ctx, projectID, oldPath, newPath, newName, "", at); err != nil {
			return fmt.Errorf("renaming %q: %w", oldPath, translateError(err))
		}
		if _, err := q.MoveTemplateFileDescendants(ctx, projectID, oldPath, newPath, at); err != nil {
			return fmt.Errorf("moving contents of %q: %w", oldPath, translateError(err))
		}
		return q.TouchPlayground(ctx, projectID, at)
	})
	if err != nil {
		return "", err
	}
	return newPath, nil
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// translateError maps unique constraint violations to playground.ErrConflict.
func translateError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", playground.ErrConflict, err)
	}
	return err
}
