package playground

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Runtime is a sandbox that can mount a project and run processes in it.
type Runtime interface {
	// Mount writes the tree into the sandbox, replacing what was there.
	Mount(ctx context.Context, tree MountTree) error

	// WriteFile writes a single file at a slash-separated path.
	WriteFile(ctx context.Context, path, content string) error

	// Spawn starts a process in the sandbox.
	Spawn(ctx context.Context, name string, args ...string) (Process, error)

	// ServerReady delivers an event each time a process starts listening.
	ServerReady() <-chan ServerReady

	Close() error
}

// Process is a command running inside a Runtime.
type Process interface {
	// Output streams the combined stdout and stderr. It reaches EOF when the
	// process exits.
	Output() io.Reader

	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)

	Kill() error
}

// ServerReady reports that a sandboxed server accepts connections.
type ServerReady struct {
	Port int
	URL  string
}

// Step is a stage of the sandbox pipeline.
type Step int

const (
	StepIdle Step = iota
	StepTransforming
	StepMounting
	StepInstalling
	StepStarting
	StepReady
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepTransforming:
		return "transforming"
	case StepMounting:
		return "mounting"
	case StepInstalling:
		return "installing"
	case StepStarting:
		return "starting"
	case StepReady:
		return "ready"
	default:
		return "unknown"
	}
}

// DefaultReadyTimeout bounds the wait for the started server.
const DefaultReadyTimeout = 2 * time.Minute

// PipelineConfig holds the commands the pipeline runs.
type PipelineConfig struct {
	InstallCommand []string
	StartCommand   []string
	ReadyTimeout   time.Duration
}

// Pipeline prepares a sandbox for one project: transform, mount, install
// dependencies, start the server and wait until it is ready. Steps run
// strictly in order and a second Run while one is in progress fails with
// ErrSetupInProgress.
type Pipeline struct {
	runtime   Runtime
	projector *Projector
	config    PipelineConfig
	logger    Logger

	inProgress atomic.Bool
	console    switchWriter

	mu      sync.Mutex
	step    Step
	server  Process
	exited  chan struct{}
	ready   *ServerReady
	mounted bool
}

// NewPipeline creates a Pipeline running in runtime.
func NewPipeline(runtime Runtime, projector *Projector, config PipelineConfig, logger Logger) *Pipeline {
	if logger == nil {
		logger = NewNopLogger()
	}
	if projector == nil {
		projector = NewProjector(logger, 0)
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = DefaultReadyTimeout
	}
	return &Pipeline{
		runtime:   runtime,
		projector: projector,
		config:    config,
		logger:    logger,
	}
}

// Step returns the stage the pipeline is in.
func (p *Pipeline) Step() Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step
}

// Run sets the sandbox up for root and returns once the server is ready.
// Progress and process output are written to console, which keeps receiving
// server output after Run returns until the next Run or Reset.
//
// When a previous Run already has a live server, Run reconnects to it
// without remounting. Any failure is written to console, stops the
// remaining steps and resets the pipeline so the next Run starts over.
func (p *Pipeline) Run(ctx context.Context, root *Node, console io.Writer) (ServerReady, error) {
	if !p.inProgress.CompareAndSwap(false, true) {
		return ServerReady{}, ErrSetupInProgress
	}
	defer p.inProgress.Store(false)

	p.console.set(console)

	if ready, ok := p.reconnect(); ok {
		p.printf("Reconnected to server at %s\n", ready.URL)
		return ready, nil
	}

	ready, err := p.run(ctx, root)
	if err != nil {
		p.logger.Error("sandbox setup failed", "step", p.Step(), "error", err)
		p.printf("Error: %v\n", err)
		p.Reset()
		return ServerReady{}, err
	}
	return ready, nil
}

func (p *Pipeline) reconnect() (ServerReady, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready == nil || p.exited == nil {
		return ServerReady{}, false
	}
	select {
	case <-p.exited:
		return ServerReady{}, false
	default:
		return *p.ready, true
	}
}

func (p *Pipeline) run(ctx context.Context, root *Node) (ServerReady, error) {
	p.setStep(StepTransforming)
	p.printf("Transforming project files...\n")
	tree, warnings := p.projector.Project(root)
	for _, w := range warnings {
		p.printf("Warning: %s\n", w)
	}

	p.setStep(StepMounting)
	p.printf("Mounting files...\n")
	if err := p.runtime.Mount(ctx, tree); err != nil {
		return ServerReady{}, fmt.Errorf("mounting files: %w", err)
	}
	p.mu.Lock()
	p.mounted = true
	p.mu.Unlock()
	p.printf("Files mounted\n")

	if len(p.config.InstallCommand) > 0 {
		p.setStep(StepInstalling)
		p.printf("Installing dependencies...\n")
		if err := p.install(ctx); err != nil {
			return ServerReady{}, err
		}
		p.printf("Dependencies installed\n")
	}

	if len(p.config.StartCommand) == 0 {
		return ServerReady{}, fmt.Errorf("no start command configured")
	}
	p.setStep(StepStarting)
	p.printf("Starting server...\n")
	drain(p.runtime.ServerReady())

	proc, err := p.runtime.Spawn(ctx, p.config.StartCommand[0], p.config.StartCommand[1:]...)
	if err != nil {
		return ServerReady{}, fmt.Errorf("starting %s: %w", strings.Join(p.config.StartCommand, " "), err)
	}
	exited := make(chan struct{})
	exitCode := make(chan int, 1)
	go func() {
		_, _ = io.Copy(&p.console, proc.Output())
		code, err := proc.Wait()
		if err != nil {
			p.logger.Warn("server process wait failed", "error", err)
		}
		exitCode <- code
		close(exited)
	}()

	p.mu.Lock()
	p.server = proc
	p.exited = exited
	p.mu.Unlock()

	timer := time.NewTimer(p.config.ReadyTimeout)
	defer timer.Stop()

	select {
	case ready := <-p.runtime.ServerReady():
		p.mu.Lock()
		p.ready = &ready
		p.step = StepReady
		p.mu.Unlock()
		p.printf("Server ready at %s\n", ready.URL)
		p.logger.Info("sandbox server ready", "port", ready.Port, "url", ready.URL)
		return ready, nil
	case <-exited:
		return ServerReady{}, fmt.Errorf("server exited with code %d before it was ready", <-exitCode)
	case <-timer.C:
		return ServerReady{}, fmt.Errorf("server not ready after %s", p.config.ReadyTimeout)
	case <-ctx.Done():
		return ServerReady{}, ctx.Err()
	}
}

func (p *Pipeline) install(ctx context.Context) error {
	cmd := strings.Join(p.config.InstallCommand, " ")
	proc, err := p.runtime.Spawn(ctx, p.config.InstallCommand[0], p.config.InstallCommand[1:]...)
	if err != nil {
		return fmt.Errorf("running %s: %w", cmd, err)
	}
	if _, err := io.Copy(&p.console, proc.Output()); err != nil {
		p.logger.Warn("reading install output failed", "error", err)
	}
	code, err := proc.Wait()
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", cmd, err)
	}
	if code != 0 {
		return fmt.Errorf("failed to install dependencies, exit code %d", code)
	}
	return nil
}

// WriteFile pushes a saved file into the mounted sandbox. It does nothing
// when the project is not mounted.
func (p *Pipeline) WriteFile(ctx context.Context, path, content string) error {
	p.mu.Lock()
	mounted := p.mounted
	p.mu.Unlock()
	if !mounted {
		return nil
	}
	if err := p.runtime.WriteFile(ctx, path, content); err != nil {
		return fmt.Errorf("writing %s to sandbox: %w", path, err)
	}
	return nil
}

// Reset stops the server, if any, and returns the pipeline to idle.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.exited = nil
	p.ready = nil
	p.mounted = false
	p.step = StepIdle
	p.mu.Unlock()

	if server != nil {
		if err := server.Kill(); err != nil && !errors.Is(err, ErrProcessDone) {
			p.logger.Warn("stopping server failed", "error", err)
		}
	}
}

func (p *Pipeline) setStep(s Step) {
	p.mu.Lock()
	p.step = s
	p.mu.Unlock()
	p.logger.Debug("sandbox step", "step", s)
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(&p.console, format, args...)
}

func drain(ch <-chan ServerReady) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// switchWriter forwards writes to a replaceable destination. Write errors
// are swallowed so a departed reader never blocks a process on a full pipe.
type switchWriter struct {
	mu  sync.Mutex
	dst io.Writer
}

func (w *switchWriter) set(dst io.Writer) {
	w.mu.Lock()
	w.dst = dst
	w.mu.Unlock()
}

func (w *switchWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dst != nil {
		if _, err := w.dst.Write(b); err != nil {
			w.dst = nil
		}
	}
	return len(b), nil
}
