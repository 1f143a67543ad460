package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"playground-go/internal/config"
)

func TestGetDefaults(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name string
		env  map[string]string
		want Defaults
	}{
		{
			name: "explicit variables win",
			env: map[string]string{
				ConfigPathEnv:     "/custom/config.toml",
				HomeEnv:           "/custom/playground",
				DatabaseURLEnv:    "postgres://db/playground",
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_DATA_HOME":   "/xdg/data",
			},
			want: Defaults{
				ConfigPath:  "/custom/config.toml",
				BaseDir:     "/custom/playground",
				DatabaseURL: "postgres://db/playground",
			},
		},
		{
			name: "xdg directories",
			env:  map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			want: Defaults{
				ConfigPath: "/xdg/config/playground.toml",
				BaseDir:    "/xdg/data/playground",
			},
		},
		{
			name: "relative xdg directories are ignored",
			env:  map[string]string{"XDG_CONFIG_HOME": "config", "XDG_DATA_HOME": "data"},
			want: Defaults{
				ConfigPath: filepath.Join(home, ".config", "playground.toml"),
				BaseDir:    filepath.Join(home, ".local", "share", "playground"),
			},
		},
		{
			name: "home directory",
			want: Defaults{
				ConfigPath: filepath.Join(home, ".config", "playground.toml"),
				BaseDir:    filepath.Join(home, ".local", "share", "playground"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{ConfigPathEnv, HomeEnv, DatabaseURLEnv, "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(key, tt.env[key])
			}
			got, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GetDefaults() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaults_NewConfig(t *testing.T) {
	t.Run("sqlite under the base dir", func(t *testing.T) {
		cfg := Defaults{BaseDir: "/data/playground"}.NewConfig("user-1")
		if cfg.UserID != "user-1" || cfg.LogDir != filepath.Join("/data/playground", "log") {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != filepath.Join("/data/playground", "db") {
			t.Errorf("Database = %+v", cfg.Database)
		}
	})

	t.Run("database url selects postgres", func(t *testing.T) {
		cfg := Defaults{BaseDir: "/data/playground", DatabaseURL: "postgres://db/playground"}.NewConfig("user-1")
		want := config.DatabaseConfig{Type: "postgres", URL: "postgres://db/playground"}
		if diff := cmp.Diff(want, cfg.Database); diff != "" {
			t.Errorf("Database mismatch (-want +got):\n%s", diff)
		}
	})
}
