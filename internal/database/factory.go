package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"playground-go/internal/config"
	"playground-go/internal/playground"
)

// DatabaseFile is the SQLite file name inside DataDir.
const DatabaseFile = "playground.db"

// NewStoreFromConfig creates a Store implementation based on the database config type.
func NewStoreFromConfig(ctx context.Context, cfg config.DatabaseConfig, logger playground.Logger) (playground.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, DatabaseFile)
		return Connect(ctx, cfg.Attempts(), logger, func(ctx context.Context) (playground.Store, error) {
			return NewSQLiteStore(ctx, dbPath)
		})
	case "memory":
		store, err := NewSQLiteStore(ctx, ":memory:")
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for postgres database")
		}
		return Connect(ctx, cfg.Attempts(), logger, func(ctx context.Context) (playground.Store, error) {
			return NewPostgresStore(ctx, cfg.URL)
		})
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
