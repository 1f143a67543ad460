package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"playground-go/internal/database/migrations"
	"playground-go/internal/playground"
)

// PostgresStore implements playground.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ playground.Store = (*PostgresStore)(nil)

// NewPostgresStore connects to url, pings the server and applies pending
// migrations.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrations.MigrateUp(db, migrations.Postgres)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Project operations

func (s *PostgresStore) CreateProject(ctx context.Context, p *playground.Project, records []playground.Record) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO playgrounds (id, title, description, template, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.Title, p.Description, p.Template, p.UserID, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting project: %w", pgTranslateError(err))
		}
		return insertRecordsPg(ctx, tx, records)
	})
}

const selectPlaygroundPg = `
	SELECT p.id, p.title, p.description, p.template, p.user_id, p.created_at, p.updated_at,
	       COALESCE(s.is_marked, FALSE)
	FROM playgrounds p
	LEFT JOIN star_marks s ON s.playground_id = p.id AND s.user_id = p.user_id`

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*playground.Project, error) {
	p, err := scanPlayground(s.pool.QueryRow(ctx, selectPlaygroundPg+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, userID string) ([]*playground.Project, error) {
	rows, err := s.pool.Query(ctx, selectPlaygroundPg+` WHERE p.user_id = $1 ORDER BY p.updated_at DESC, p.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []*playground.Project
	for rows.Next() {
		p, err := scanPlayground(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, id, title, description string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE playgrounds SET title = $1, description = $2, updated_at = $3 WHERE id = $4`,
		title, description, at, id)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", playground.ErrProjectNotFound, id)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM playgrounds WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetStar(ctx context.Context, projectID, userID string, marked bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO star_marks (user_id, playground_id, is_marked) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, playground_id) DO UPDATE SET is_marked = EXCLUDED.is_marked`,
		userID, projectID, marked)
	if err != nil {
		return fmt.Errorf("setting star: %w", err)
	}
	return nil
}

// Record operations

const selectTemplateFilePg = `
	SELECT id, playground_id, path, COALESCE(parent_path, ''), is_folder, filename, extension, content, updated_at
	FROM template_files`

func (s *PostgresStore) ListRecords(ctx context.Context, projectID string) ([]playground.Record, error) {
	rows, err := s.pool.Query(ctx, selectTemplateFilePg+` WHERE playground_id = $1 ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (playground.Record, error) {
		var r playground.Record
		err := row.Scan(&r.ID, &r.PlaygroundID, &r.Path, &r.ParentPath, &r.IsFolder, &r.Filename, &r.Extension, &r.Content, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) CreateRecords(ctx context.Context, records []playground.Record) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := insertRecordsPg(ctx, tx, records); err != nil {
			return err
		}
		return touchPlaygroundPg(ctx, tx, records[0].PlaygroundID, records[len(records)-1].UpdatedAt)
	})
}

func (s *PostgresStore) UpdateContent(ctx context.Context, projectID, path, content string, at time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE template_files SET content = $1, updated_at = $2
			WHERE playground_id = $3 AND path = $4 AND NOT is_folder`,
			content, at, projectID, path)
		if err != nil {
			return fmt.Errorf("updating content: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: file %q", playground.ErrNotFound, path)
		}
		return touchPlaygroundPg(ctx, tx, projectID, at)
	})
}

func (s *PostgresStore) DeleteByPath(ctx context.Context, projectID, path string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM template_files
		WHERE playground_id = $1 AND (path = $2 OR starts_with(path, $3))`,
		projectID, path, path+"/")
	if err != nil {
		return 0, fmt.Errorf("deleting %q: %w", path, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RenameFile(ctx context.Context, projectID, oldPath, filename, extension string, at time.Time) (string, error) {
	var newPath string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var parent string
		var isFolder bool
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(parent_path, ''), is_folder FROM template_files
			WHERE playground_id = $1 AND path = $2 FOR UPDATE`,
			projectID, oldPath).Scan(&parent, &isFolder)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: file %q", playground.ErrNotFound, oldPath)
		}
		if err != nil {
			return fmt.Errorf("finding %q: %w", oldPath, err)
		}
		if isFolder {
			return fmt.Errorf("%w: %q", playground.ErrNotFile, oldPath)
		}

		newPath = playground.FilePath(parent, filename, extension)
		_, err = tx.Exec(ctx, `
			UPDATE template_files SET path = $1, filename = $2, extension = $3, updated_at = $4
			WHERE playground_id = $5 AND path = $6`,
			newPath, filename, extension, at, projectID, oldPath)
		if err != nil {
			return fmt.Errorf("renaming %q: %w", oldPath, pgTranslateError(err))
		}
		return touchPlaygroundPg(ctx, tx, projectID, at)
	})
	if err != nil {
		return "", err
	}
	return newPath, nil
}

func (s *PostgresStore) RenameFolder(ctx context.Context, projectID, oldPath, newName string, at time.Time) (string, error) {
	var newPath string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var parent string
		var isFolder bool
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(parent_path, ''), is_folder FROM template_files
			WHERE playground_id = $1 AND path = $2 FOR UPDATE`,
			projectID, oldPath).Scan(&parent, &isFolder)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: folder %q", playground.ErrNotFound, oldPath)
		}
		if err != nil {
			return fmt.Errorf("finding %q: %w", oldPath, err)
		}
		if !isFolder {
			return fmt.Errorf("%w: %q", playground.ErrNotFolder, oldPath)
		}

		newPath = playground.FolderPath(parent, newName)
		var taken int64
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM template_files
			WHERE playground_id = $1 AND (path = $2 OR starts_with(path, $3))`,
			projectID, newPath, newPath+"/").Scan(&taken)
		if err != nil {
			return fmt.Errorf("checking %q: %w", newPath, err)
		}
		if taken > 0 {
			return fmt.Errorf("%w: %q", playground.ErrConflict, newPath)
		}

		_, err = tx.Exec(ctx, `
			UPDATE template_files SET path = $1, filename = $2, updated_at = $3
			WHERE playground_id = $4 AND path = $5`,
			newPath, newName, at, projectID, oldPath)
		if err != nil {
			return fmt.Errorf("renaming %q: %w", oldPath, pgTranslateError(err))
		}
		_, err = tx.Exec(ctx, `
			UPDATE template_files
			SET path = $1 || substr(path, length($2) + 1),
			    parent_path = $1 || substr(parent_path, length($2) + 1),
			    updated_at = $3
			WHERE playground_id = $4 AND starts_with(path, $5)`,
			newPath, oldPath, at, projectID, oldPath+"/")
		if err != nil {
			return fmt.Errorf("moving contents of %q: %w", oldPath, pgTranslateError(err))
		}
		return touchPlaygroundPg(ctx, tx, projectID, at)
	})
	if err != nil {
		return "", err
	}
	return newPath, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func insertRecordsPg(ctx context.Context, tx pgx.Tx, records []playground.Record) error {
	batch := &pgx.Batch{}
	for _, r := range records {
		r := r
		var parent *string
		if r.ParentPath != "" {
			parent = &r.ParentPath
		}
		batch.Queue(`
			INSERT INTO template_files (id, playground_id, path, parent_path, is_folder, filename, extension, content, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ID, r.PlaygroundID, r.Path, parent, r.IsFolder, r.Filename, r.Extension, r.Content, r.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting records: %w", pgTranslateError(err))
	}
	return nil
}

func touchPlaygroundPg(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	if _, err := tx.Exec(ctx, `UPDATE playgrounds SET updated_at = $1 WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("touching project: %w", err)
	}
	return nil
}

// pgTranslateError maps unique violations (SQLSTATE 23505) to playground.ErrConflict.
func pgTranslateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", playground.ErrConflict, pgErr.Detail)
	}
	return err
}
