package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFiles embed.FS

// Dialect selects the migration set and driver for a database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) dir() (string, error) {
	switch d {
	case SQLite:
		return "files/sqlite", nil
	case Postgres:
		return "files/postgres", nil
	default:
		return "", fmt.Errorf("unknown migration dialect: %q", d)
	}
}

// CheckDBMigrationStatus verifies that the database schema is up-to-date.
// Returns nil if the database is at the latest version.
func CheckDBMigrationStatus(db *sql.DB, dialect Dialect) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close db, which the caller owns.

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	latestVersion, err := LatestVersion(dialect)
	if err != nil {
		return err
	}

	if version < latestVersion {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latestVersion, latestVersion-version)
	}
	if version > latestVersion {
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latestVersion)
	}
	return nil
}

// MigrateUp runs all pending migrations to bring database to latest version.
func MigrateUp(db *sql.DB, dialect Dialect) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// LatestVersion returns the highest migration version embedded for dialect.
func LatestVersion(dialect Dialect) (uint, error) {
	dir, err := dialect.dir()
	if err != nil {
		return 0, err
	}
	src, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()

	latest, err := getLatestVersion(src)
	if err != nil {
		return 0, fmt.Errorf("failed to determine latest version: %w", err)
	}
	return latest, nil
}

// UpScript returns every up migration of dialect in version order, each
// preceded by a comment naming it.
func UpScript(dialect Dialect) (string, error) {
	dir, err := dialect.dir()
	if err != nil {
		return "", err
	}
	src, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()

	var b strings.Builder
	version, err := src.First()
	for err == nil {
		r, identifier, rerr := src.ReadUp(version)
		if rerr != nil {
			return "", fmt.Errorf("reading migration %d: %w", version, rerr)
		}
		data, rerr := io.ReadAll(r)
		r.Close()
		if rerr != nil {
			return "", fmt.Errorf("reading migration %d: %w", version, rerr)
		}
		fmt.Fprintf(&b, "-- %06d_%s\n%s\n", version, identifier, strings.TrimSpace(string(data)))
		version, err = src.Next(version)
		if err == nil {
			b.WriteString("\n")
		}
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("walking migrations: %w", err)
	}
	return b.String(), nil
}

func newMigrate(db *sql.DB, dialect Dialect) (*migrate.Migrate, error) {
	dir, err := dialect.dir()
	if err != nil {
		return nil, err
	}
	sourceDriver, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	var dbDriver database.Driver
	switch dialect {
	case SQLite:
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case Postgres:
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	}
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// getLatestVersion walks the source to its last migration.
func getLatestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}

	latestVersion := version
	for {
		nextVersion, err := src.Next(latestVersion)
		if err != nil {
			// Next fails once there are no more migrations.
			break
		}
		latestVersion = nextVersion
	}
	return latestVersion, nil
}
