package sandbox

import (
	"errors"
	"fmt"
	"sync"

	"playground-go/internal/config"
	"playground-go/internal/playground"
)

// StartScripts maps a template name to the package script that starts it.
type StartScripts interface {
	StartScript(template string) string
}

type managed struct {
	runtime  playground.Runtime
	pipeline *playground.Pipeline
}

// Manager owns one runtime and pipeline per project. Pipelines are created
// on first use and live until Stop or Close.
type Manager struct {
	cfg       config.SandboxConfig
	scripts   StartScripts
	projector *playground.Projector
	logger    playground.Logger

	mu      sync.Mutex
	entries map[string]*managed
}

// NewManager creates a Manager building runtimes from cfg.
func NewManager(cfg config.SandboxConfig, scripts StartScripts, projector *playground.Projector, logger playground.Logger) *Manager {
	if logger == nil {
		logger = playground.NewNopLogger()
	}
	return &Manager{
		cfg:       cfg,
		scripts:   scripts,
		projector: projector,
		logger:    logger,
		entries:   make(map[string]*managed),
	}
}

// Pipeline returns the pipeline for a project, creating its runtime the
// first time. template selects the start script.
func (m *Manager) Pipeline(projectID, template string) (*playground.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[projectID]; ok {
		return e.pipeline, nil
	}

	script := ""
	if m.scripts != nil {
		script = m.scripts.StartScript(template)
	}
	pcfg, err := NewPipelineConfig(m.cfg, script)
	if err != nil {
		return nil, err
	}
	rt, err := NewRuntimeFromConfig(m.cfg, projectID, m.logger)
	if err != nil {
		return nil, fmt.Errorf("creating sandbox for %s: %w", projectID, err)
	}

	e := &managed{runtime: rt, pipeline: playground.NewPipeline(rt, m.projector, pcfg, m.logger)}
	m.entries[projectID] = e
	m.logger.Debug("sandbox created", "project", projectID, "start", pcfg.StartCommand)
	return e.pipeline, nil
}

// Running returns the pipeline of a project if one was created, or nil.
func (m *Manager) Running(projectID string) *playground.Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[projectID]; ok {
		return e.pipeline
	}
	return nil
}

// Runtime returns the runtime of a project if one was created, or nil.
func (m *Manager) Runtime(projectID string) playground.Runtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[projectID]; ok {
		return e.runtime
	}
	return nil
}

// Stop resets the pipeline of a project and releases its runtime.
func (m *Manager) Stop(projectID string) error {
	m.mu.Lock()
	e, ok := m.entries[projectID]
	delete(m.entries, projectID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	e.pipeline.Reset()
	if err := e.runtime.Close(); err != nil {
		return fmt.Errorf("closing sandbox for %s: %w", projectID, err)
	}
	return nil
}

// Close stops every sandbox.
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Stop(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
