package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"playground-go/internal/archive"
	"playground-go/internal/config"
	"playground-go/internal/database"
	"playground-go/internal/playground"
	"playground-go/internal/sandbox"
	"playground-go/internal/server"
	"playground-go/internal/templates"
)

// App is the application layer between the CLI and the playground service.
// It constructs all dependencies from config, resolves the project
// references users type, and closes everything on Close.
type App struct {
	cfg       *config.Config
	store     playground.Store
	templates *templates.Library
	service   *playground.Service
	sandboxes *sandbox.Manager
	archiver  *archive.Archiver
	logger    playground.Logger
	clock     playground.Clock
	op        *Operation
	logFile   *os.File
}

// New creates a fully wired App from the given config. command and args
// identify the CLI command being run. The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, command string, args []string, verbose bool) (*App, error) {
	clock := playground.RealClock{}
	op := NewOperation(command, args, clock.Now())

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	sl, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	a, err := newApp(ctx, cfg, logger, clock)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.op = op
	a.logFile = logFile
	logger.Debug("command started", "command", op.Command, "args", op.Parameters)
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger playground.Logger, clock playground.Clock) (*App, error) {
	lib, err := templates.New(logger)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	store, err := database.NewStoreFromConfig(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	projector := playground.NewProjector(logger, cfg.LargeFileThreshold)
	svc := playground.NewService(store, lib, projector, logger, clock, playground.UUIDGenerator{})

	return &App{
		cfg:       cfg,
		store:     store,
		templates: lib,
		service:   svc,
		sandboxes: sandbox.NewManager(cfg.Sandbox, lib, projector, logger),
		logger:    logger,
		clock:     clock,
	}, nil
}

func (a *App) Config() *config.Config        { return a.cfg }
func (a *App) Service() *playground.Service  { return a.service }
func (a *App) Templates() *templates.Library { return a.templates }
func (a *App) Sandboxes() *sandbox.Manager   { return a.sandboxes }
func (a *App) Logger() playground.Logger     { return a.logger }

// ResolveProject finds a project of the configured user by id or by exact
// title.
func (a *App) ResolveProject(ctx context.Context, ref string) (*playground.Project, error) {
	p, err := a.service.GetProject(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, playground.ErrProjectNotFound) {
		return nil, err
	}

	projects, err := a.service.ListProjects(ctx, a.cfg.UserID)
	if err != nil {
		return nil, err
	}
	var matches []*playground.Project
	for _, p := range projects {
		if p.Title == ref {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", playground.ErrProjectNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, p := range matches {
			ids[i] = p.ID
		}
		return nil, fmt.Errorf("title %q matches %d projects (%s), use an id", ref, len(matches), strings.Join(ids, ", "))
	}
}

// Open resolves ref and returns its editing session.
func (a *App) Open(ctx context.Context, ref string) (*playground.Project, *playground.Session, error) {
	p, err := a.ResolveProject(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	sess, err := a.service.Open(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

// CreateProject creates a project owned by the configured user.
func (a *App) CreateProject(ctx context.Context, title, template, description string) (*playground.Project, error) {
	if template != "" && !a.templates.Has(template) {
		return nil, fmt.Errorf("unknown template %q (available: %s)", template, strings.Join(a.templates.Names(), ", "))
	}
	return a.service.CreateProject(ctx, title, template, description, a.cfg.UserID)
}

// ListProjects returns the configured user's projects.
func (a *App) ListProjects(ctx context.Context) ([]*playground.Project, error) {
	return a.service.ListProjects(ctx, a.cfg.UserID)
}

// DeleteProject stops the project's sandbox and removes the project.
func (a *App) DeleteProject(ctx context.Context, ref string) error {
	p, err := a.ResolveProject(ctx, ref)
	if err != nil {
		return err
	}
	if err := a.sandboxes.Stop(p.ID); err != nil {
		a.logger.Warn("stopping sandbox failed", "project", p.ID, "error", err)
	}
	return a.service.DeleteProject(ctx, p.ID)
}

// SetStar marks or unmarks a project for the configured user.
func (a *App) SetStar(ctx context.Context, ref string, marked bool) error {
	p, err := a.ResolveProject(ctx, ref)
	if err != nil {
		return err
	}
	return a.service.ToggleStar(ctx, p.ID, a.cfg.UserID, marked)
}

// RunProject sets the project's sandbox up, streaming progress to console,
// and keeps the server running until ctx is done. With watch, edits made in
// the sandbox folder are saved back into the project.
func (a *App) RunProject(ctx context.Context, ref string, console io.Writer, watch bool) error {
	p, sess, err := a.Open(ctx, ref)
	if err != nil {
		return err
	}
	pipe, err := a.sandboxes.Pipeline(p.ID, p.Template)
	if err != nil {
		return err
	}
	defer a.sandboxes.Stop(p.ID)

	if _, err := pipe.Run(ctx, sess.Tree(), console); err != nil {
		return fmt.Errorf("running %s: %w", p.Title, err)
	}

	if watch {
		local, ok := a.sandboxes.Runtime(p.ID).(*sandbox.LocalRuntime)
		if !ok {
			return fmt.Errorf("--watch needs a local sandbox, configured type is %q", a.cfg.Sandbox.Type)
		}
		w, err := sandbox.NewWatcher(local.Dir(), a.cfg.Sandbox.Ignore, sess, a.logger)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("watcher stopped", "project", p.ID, "error", err)
			}
		}()
		fmt.Fprintf(console, "Watching %s for changes\n", local.Dir())
	}

	<-ctx.Done()
	return nil
}

func (a *App) getArchiver(ctx context.Context) (*archive.Archiver, error) {
	if a.archiver != nil {
		return a.archiver, nil
	}
	sink, err := archive.NewSinkFromConfig(ctx, a.cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive sink: %w", err)
	}
	a.archiver = archive.NewArchiver(sink, a.service, a.logger, a.clock)
	return a.archiver, nil
}

// ExportProject stores the project in the archive sink and returns the
// archive name.
func (a *App) ExportProject(ctx context.Context, ref, name, passphrase string) (string, error) {
	p, err := a.ResolveProject(ctx, ref)
	if err != nil {
		return "", err
	}
	arch, err := a.getArchiver(ctx)
	if err != nil {
		return "", err
	}
	return arch.Export(ctx, p.ID, name, passphrase)
}

// ImportProject creates a project for the configured user from a stored archive.
func (a *App) ImportProject(ctx context.Context, name, passphrase, title string) (*playground.Project, error) {
	arch, err := a.getArchiver(ctx)
	if err != nil {
		return nil, err
	}
	return arch.Import(ctx, name, passphrase, a.cfg.UserID, title)
}

// ListArchives returns the names of stored archives.
func (a *App) ListArchives(ctx context.Context) ([]string, error) {
	arch, err := a.getArchiver(ctx)
	if err != nil {
		return nil, err
	}
	return arch.List(ctx)
}

// NewServer builds the HTTP server from the server config.
func (a *App) NewServer() (*server.Server, error) {
	auth, err := server.NewAuthenticator(a.cfg.Server.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("configuring auth: %w", err)
	}
	return server.New(a.service, a.sandboxes, a.templates, auth, a.cfg.Server, a.logger), nil
}

// NewToken issues an API token for userID, or for the configured user.
func (a *App) NewToken(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		userID = a.cfg.UserID
	}
	auth, err := server.NewAuthenticator(a.cfg.Server.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("configuring auth: %w", err)
	}
	return auth.NewToken(userID, "", ttl)
}

// BackupDatabase writes a copy of the SQLite database to destPath.
func (a *App) BackupDatabase(destPath string) error {
	b, ok := a.store.(interface{ BackupTo(string) error })
	if !ok {
		return fmt.Errorf("database type %q does not support backups", a.cfg.Database.Type)
	}
	return b.BackupTo(destPath)
}

// Finish records the outcome of the command for the log.
func (a *App) Finish(err error) {
	if a.op == nil || a.op.Finished() {
		return
	}
	a.op.Finish(err, a.clock.Now())
	if err != nil {
		a.logger.Error("command failed", "command", a.op.Command, "duration", a.op.Duration(), "error", err)
		return
	}
	a.logger.Debug("command finished", "command", a.op.Command, "duration", a.op.Duration())
}

// Close stops every sandbox and closes the store and log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.sandboxes.Close(); err != nil {
		firstErr = fmt.Errorf("stopping sandboxes: %w", err)
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
