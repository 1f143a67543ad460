package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for playground.
type Config struct {
	UserID             string         `toml:"user_id"`
	BaseDir            string         `toml:"base_dir"`
	LogDir             string         `toml:"log_dir"`
	LargeFileThreshold int            `toml:"large_file_threshold,omitempty"`
	Database           DatabaseConfig `toml:"database"`
	Sandbox            SandboxConfig  `toml:"sandbox"`
	Server             ServerConfig   `toml:"server"`
	Archive            ArchiveConfig  `toml:"archive"`
}

// DatabaseConfig represents configuration for project storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "postgres"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	URL     string `toml:"url,omitempty"`      // only used for type=postgres

	// MaxConnectAttempts bounds connection retries; 0 means DefaultConnectAttempts.
	MaxConnectAttempts int `toml:"max_connect_attempts,omitempty"`
}

// DefaultConnectAttempts is used when MaxConnectAttempts is unset.
const DefaultConnectAttempts = 3

// Attempts returns the configured connection attempts or the default.
func (c DatabaseConfig) Attempts() int {
	if c.MaxConnectAttempts <= 0 {
		return DefaultConnectAttempts
	}
	return c.MaxConnectAttempts
}

// SandboxConfig represents configuration for the sandbox runtime.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SandboxConfig struct {
	Type           string   `toml:"type"`               // "local" or "memory"
	WorkDir        string   `toml:"work_dir,omitempty"` // only used for type=local
	InstallCommand []string `toml:"install_command"`
	StartCommand   []string `toml:"start_command"`           // empty runs the template's own start script
	ReadyTimeout   string   `toml:"ready_timeout,omitempty"` // Go duration, e.g. "2m"
	Ignore         []string `toml:"ignore,omitempty"`        // watcher ignore patterns
}

// Timeout parses ReadyTimeout. An empty value returns 0.
func (c SandboxConfig) Timeout() (time.Duration, error) {
	if c.ReadyTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ReadyTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid ready_timeout %q: %w", c.ReadyTimeout, err)
	}
	return d, nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	JWTSecret      string   `toml:"jwt_secret"`
}

// ArchiveConfig represents where exported projects are kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "filesystem" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Optional: an S3-compatible endpoint such as MinIO, and static
	// credentials. Empty values use the default AWS credential chain.
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(userID, baseDir string) *Config {
	return &Config{
		UserID:  userID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Sandbox: SandboxConfig{
			Type:           "local",
			WorkDir:        filepath.Join(baseDir, "sandbox"),
			InstallCommand: []string{"npm", "install"},
			ReadyTimeout:   "2m",
			Ignore:         []string{"node_modules", ".git"},
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Archive: ArchiveConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "archive"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold the JWT secret.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
