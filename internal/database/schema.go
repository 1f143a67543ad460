package database

import (
	"database/sql"
	"fmt"
	"strings"

	"playground-go/internal/database/migrations"
)

// Schema snapshot files, regenerated by tools/generate_schema.go.
const (
	SQLiteSchemaFile   = "schema.sql"
	PostgresSchemaFile = "schema_postgres.sql"
)

const schemaHeader = `-- This file is auto-generated from migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.
-- Source: internal/database/migrations/files/%s/*.sql

`

// SQLiteSchema migrates a scratch in-memory database and returns the
// resulting CREATE statements, tables before indexes.
func SQLiteSchema() (string, error) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		return "", err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db, migrations.SQLite); err != nil {
		return "", err
	}
	body, err := extractSQLiteSchema(db)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(schemaHeader, migrations.SQLite) + body, nil
}

// PostgresSchema returns the Postgres up migrations in order. Unlike
// SQLite it needs no running server.
func PostgresSchema() (string, error) {
	body, err := migrations.UpScript(migrations.Postgres)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(schemaHeader, migrations.Postgres) + body, nil
}

// extractSQLiteSchema reads every CREATE statement from sqlite_master,
// leaving out SQLite internals and the migration tracking table.
func extractSQLiteSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type WHEN 'table' THEN 1 ELSE 2 END,
		  name
	`)
	if err != nil {
		return "", fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading sqlite_master: %w", err)
	}
	return b.String(), nil
}
