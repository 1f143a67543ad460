package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"playground-go/internal/config"
	"playground-go/internal/playground"
)

// MemoryServerPort is the port the memory runtime pretends to serve on.
const MemoryServerPort = 3000

// NewRuntimeFromConfig creates the Runtime for one project based on the
// sandbox config type. Local runtimes get their own folder under WorkDir.
func NewRuntimeFromConfig(cfg config.SandboxConfig, projectID string, logger playground.Logger) (playground.Runtime, error) {
	switch cfg.Type {
	case "local":
		if cfg.WorkDir == "" {
			return nil, fmt.Errorf("work_dir required for local sandbox")
		}
		if err := playground.ValidateFolderName(projectID); err != nil {
			return nil, fmt.Errorf("project id %q: %w", projectID, err)
		}
		return NewLocalRuntime(filepath.Join(cfg.WorkDir, projectID), cfg.Ignore, logger)
	case "memory":
		rt := NewMemoryRuntime()
		if len(cfg.InstallCommand) > 0 {
			rt.Script[strings.Join(cfg.InstallCommand, " ")] = ScriptedProcess{Output: "up to date\n"}
		}
		url := fmt.Sprintf("http://localhost:%d", MemoryServerPort)
		rt.Fallback = ScriptedProcess{
			Output:      "Server listening on " + url + "\n",
			Ready:       &playground.ServerReady{Port: MemoryServerPort, URL: url},
			LongRunning: true,
		}
		return rt, nil
	default:
		return nil, fmt.Errorf("unknown sandbox type: %s", cfg.Type)
	}
}

// NewPipelineConfig builds the pipeline commands for a project whose
// template runs startScript. A configured start command wins.
func NewPipelineConfig(cfg config.SandboxConfig, startScript string) (playground.PipelineConfig, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return playground.PipelineConfig{}, err
	}
	start := cfg.StartCommand
	if len(start) == 0 {
		if startScript == "" {
			startScript = "start"
		}
		start = []string{"npm", "run", startScript}
	}
	return playground.PipelineConfig{
		InstallCommand: cfg.InstallCommand,
		StartCommand:   start,
		ReadyTimeout:   timeout,
	}, nil
}
