package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"playground-go/internal/playground"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// queries holds the SQLite statements. Prefix matches use substr/length
// instead of LIKE so '%' and '_' in names need no escaping.
type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

func (q *queries) withTx(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

const insertPlayground = `
INSERT INTO playgrounds (id, title, description, template, user_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *queries) InsertPlayground(ctx context.Context, p *playground.Project) error {
	_, err := q.db.ExecContext(ctx, insertPlayground,
		p.ID, p.Title, p.Description, p.Template, p.UserID, p.CreatedAt, p.UpdatedAt)
	return err
}

const selectPlayground = `
SELECT p.id, p.title, p.description, p.template, p.user_id, p.created_at, p.updated_at,
       COALESCE(s.is_marked, 0)
FROM playgrounds p
LEFT JOIN star_marks s ON s.playground_id = p.id AND s.user_id = p.user_id`

func (q *queries) GetPlayground(ctx context.Context, id string) (*playground.Project, error) {
	row := q.db.QueryRowContext(ctx, selectPlayground+` WHERE p.id = ?`, id)
	p, err := scanPlayground(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (q *queries) ListPlaygroundsByUser(ctx context.Context, userID string) ([]*playground.Project, error) {
	rows, err := q.db.QueryContext(ctx, selectPlayground+` WHERE p.user_id = ? ORDER BY p.updated_at DESC, p.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*playground.Project
	for rows.Next() {
		p, err := scanPlayground(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const updatePlayground = `
UPDATE playgrounds SET title = ?, description = ?, updated_at = ? WHERE id = ?`

func (q *queries) UpdatePlayground(ctx context.Context, id, title, description string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updatePlayground, title, description, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *queries) TouchPlayground(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE playgrounds SET updated_at = ? WHERE id = ?`, at, id)
	return err
}

func (q *queries) DeletePlayground(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM playgrounds WHERE id = ?`, id)
	return err
}

const upsertStarMark = `
INSERT INTO star_marks (user_id, playground_id, is_marked) VALUES (?, ?, ?)
ON CONFLICT (user_id, playground_id) DO UPDATE SET is_marked = excluded.is_marked`

func (q *queries) UpsertStarMark(ctx context.Context, playgroundID, userID string, marked bool) error {
	_, err := q.db.ExecContext(ctx, upsertStarMark, userID, playgroundID, marked)
	return err
}

const insertTemplateFile = `
INSERT INTO template_files (id, playground_id, path, parent_path, is_folder, filename, extension, content, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *queries) InsertTemplateFile(ctx context.Context, r playground.Record) error {
	_, err := q.db.ExecContext(ctx, insertTemplateFile,
		r.ID, r.PlaygroundID, r.Path, nullString(r.ParentPath), r.IsFolder,
		r.Filename, r.Extension, r.Content, r.UpdatedAt)
	return err
}

const selectTemplateFile = `
SELECT id, playground_id, path, parent_path, is_folder, filename, extension, content, updated_at
FROM template_files`

func (q *queries) ListTemplateFiles(ctx context.Context, playgroundID string) ([]playground.Record, error) {
	rows, err := q.db.QueryContext(ctx, selectTemplateFile+` WHERE playground_id = ? ORDER BY seq`, playgroundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []playground.Record
	for rows.Next() {
		r, err := scanTemplateFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) GetTemplateFileByPath(ctx context.Context, playgroundID, path string) (*playground.Record, error) {
	row := q.db.QueryRowContext(ctx, selectTemplateFile+` WHERE playground_id = ? AND path = ?`, playgroundID, path)
	r, err := scanTemplateFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const countPathOrBelow = `
SELECT COUNT(*) FROM template_files
WHERE playground_id = ? AND (path = ? OR substr(path, 1, length(?)) = ?)`

func (q *queries) CountPathOrBelow(ctx context.Context, playgroundID, path string) (int64, error) {
	var n int64
	prefix := path + "/"
	err := q.db.QueryRowContext(ctx, countPathOrBelow, playgroundID, path, prefix, prefix).Scan(&n)
	return n, err
}

const updateTemplateFileContent = `
UPDATE template_files SET content = ?, updated_at = ?
WHERE playground_id = ? AND path = ? AND is_folder = 0`

func (q *queries) UpdateTemplateFileContent(ctx context.Context, playgroundID, path, content string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTemplateFileContent, content, at, playgroundID, path)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTemplateFilesByPath = `
DELETE FROM template_files
WHERE playground_id = ? AND (path = ? OR substr(path, 1, length(?)) = ?)`

func (q *queries) DeleteTemplateFilesByPath(ctx context.Context, playgroundID, path string) (int64, error) {
	prefix := path + "/"
	res, err := q.db.ExecContext(ctx, deleteTemplateFilesByPath, playgroundID, path, prefix, prefix)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateTemplateFileName = `
UPDATE template_files SET path = ?, filename = ?, extension = ?, updated_at = ?
WHERE playground_id = ? AND path = ?`

func (q *queries) UpdateTemplateFileName(ctx context.Context, playgroundID, oldPath, newPath, filename, extension string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, updateTemplateFileName, newPath, filename, extension, at, playgroundID, oldPath)
	return err
}

// Descendant rows keep everything after the old folder path and swap the
// prefix. parent_path of a descendant always starts with the old path.
const moveTemplateFileDescendants = `
UPDATE template_files
SET path = ? || substr(path, length(?) + 1),
    parent_path = ? || substr(parent_path, length(?) + 1),
    updated_at = ?
WHERE playground_id = ? AND substr(path, 1, length(?)) = ?`

func (q *queries) MoveTemplateFileDescendants(ctx context.Context, playgroundID, oldPath, newPath string, at time.Time) (int64, error) {
	prefix := oldPath + "/"
	res, err := q.db.ExecContext(ctx, moveTemplateFileDescendants,
		newPath, oldPath, newPath, oldPath, at, playgroundID, prefix, prefix)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayground(s scanner) (*playground.Project, error) {
	var p playground.Project
	if err := s.Scan(&p.ID, &p.Title, &p.Description, &p.Template, &p.UserID, &p.CreatedAt, &p.UpdatedAt, &p.Starred); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTemplateFile(s scanner) (playground.Record, error) {
	var r playground.Record
	var parent sql.NullString
	err := s.Scan(&r.ID, &r.PlaygroundID, &r.Path, &parent, &r.IsFolder, &r.Filename, &r.Extension, &r.Content, &r.UpdatedAt)
	r.ParentPath = parent.String
	return r, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
