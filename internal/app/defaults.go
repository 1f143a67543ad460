package app

import (
	"fmt"
	"os"
	"path/filepath"

	"playground-go/internal/config"
)

// Environment variables read by GetDefaults.
const (
	ConfigPathEnv  = "PLAYGROUND_CONFIG_PATH"
	HomeEnv        = "PLAYGROUND_HOME"
	DatabaseURLEnv = "PLAYGROUND_DATABASE_URL"
)

// Defaults are the locations and settings used before a config file exists.
type Defaults struct {
	ConfigPath  string
	BaseDir     string
	DatabaseURL string
}

// GetDefaults resolves Defaults from the environment. Paths fall back to the
// XDG base directories and then to ~/.config/playground.toml and
// ~/.local/share/playground.
func GetDefaults() (Defaults, error) {
	configPath, err := resolvePath(ConfigPathEnv, "XDG_CONFIG_HOME", ".config", "playground.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := resolvePath(HomeEnv, "XDG_DATA_HOME", filepath.Join(".local", "share"), "playground")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		DatabaseURL: os.Getenv(DatabaseURLEnv),
	}, nil
}

// NewConfig returns a config for userID rooted at BaseDir. A database URL
// switches the store to Postgres.
func (d Defaults) NewConfig(userID string) *config.Config {
	cfg := config.NewConfig(userID, d.BaseDir)
	if d.DatabaseURL != "" {
		cfg.Database = config.DatabaseConfig{Type: "postgres", URL: d.DatabaseURL}
	}
	return cfg
}

// resolvePath returns the value of env, else name under the XDG directory in
// xdgEnv, else name under homeSubdir of the home directory.
func resolvePath(env, xdgEnv, homeSubdir, name string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	if dir := os.Getenv(xdgEnv); filepath.IsAbs(dir) {
		return filepath.Join(dir, name), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, homeSubdir, name), nil
}
