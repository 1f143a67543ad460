package playground

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CopySuffix is appended to the title of a duplicated project.
const CopySuffix = " (Copy)"

// Service coordinates projects, their stored records and the open editing
// sessions. Every tree change goes through a Session, which writes to the
// store before publishing the new tree.
type Service struct {
	store     Store
	templates TemplateSource
	projector *Projector
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	mu       sync.Mutex
	sessions map[string]*Session
	loading  map[string]chan struct{} // closed when the project's first Open finishes
}

// NewService creates a new Service with the provided dependencies.
func NewService(store Store, templates TemplateSource, projector *Projector, logger Logger, clock Clock, idgen IDGenerator) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if projector == nil {
		projector = NewProjector(logger, 0)
	}
	return &Service{
		store:     store,
		templates: templates,
		projector: projector,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		sessions:  make(map[string]*Session),
		loading:   make(map[string]chan struct{}),
	}
}

// CreateProject stores a new, empty project. Its files are seeded from the
// template the first time it is opened.
func (s *Service) CreateProject(ctx context.Context, title, template, description, userID string) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: project title is required", ErrInvalidName)
	}

	now := s.clock.Now()
	p := &Project{
		ID:          s.idgen.New(),
		Title:       title,
		Description: description,
		Template:    template,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p, nil); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created", "project", p.ID, "template", template, "user", userID)
	return p, nil
}

// ImportProject stores a new project whose files are the given tree.
func (s *Service) ImportProject(ctx context.Context, title, template, description, userID string, root *Node) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: project title is required", ErrInvalidName)
	}
	if !root.IsFolder() {
		return nil, fmt.Errorf("%w: imported tree has no root folder", ErrNotFolder)
	}
	if err := ValidateTree(root); err != nil {
		return nil, fmt.Errorf("importing project: %w", err)
	}

	now := s.clock.Now()
	p := &Project{
		ID:          s.idgen.New(),
		Title:       title,
		Description: description,
		Template:    template,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p, s.records(p.ID, root)); err != nil {
		return nil, fmt.Errorf("importing project: %w", err)
	}

	s.logger.Info("project imported", "project", p.ID, "user", userID)
	return p, nil
}

// GetProject returns the project with the given id or ErrProjectNotFound.
func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

// ListProjects returns the projects owned by userID.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	projects, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// UpdateProject changes a project's title and description.
func (s *Service) UpdateProject(ctx context.Context, id, title, description string) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: project title is required", ErrInvalidName)
	}
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProject(ctx, id, title, description, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project, its records and any open session.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.logger.Info("project deleted", "project", id)
	return nil
}

// DuplicateProject copies a project and all of its records into a new
// project owned by the same user.
func (s *Service) DuplicateProject(ctx context.Context, id string) (*Project, error) {
	src, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	now := s.clock.Now()
	dup := &Project{
		ID:          s.idgen.New(),
		Title:       src.Title + CopySuffix,
		Description: src.Description,
		Template:    src.Template,
		UserID:      src.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	copies := make([]Record, len(records))
	for i, r := range records {
		r.ID = s.idgen.New()
		r.PlaygroundID = dup.ID
		r.UpdatedAt = now
		copies[i] = r
	}
	if err := s.store.CreateProject(ctx, dup, copies); err != nil {
		return nil, fmt.Errorf("duplicating project: %w", err)
	}

	s.logger.Info("project duplicated", "project", id, "copy", dup.ID, "records", len(copies))
	return dup, nil
}

// ToggleStar marks or unmarks a project for userID.
func (s *Service) ToggleStar(ctx context.Context, id, userID string, marked bool) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	if err := s.store.SetStar(ctx, id, userID, marked); err != nil {
		return fmt.Errorf("setting star: %w", err)
	}
	return nil
}

// Open returns the editing session for a project, loading its tree from the
// store on first use. A project without records is seeded from its template.
// Concurrent first opens of one project share a single load; other projects
// are not held up by it.
func (s *Service) Open(ctx context.Context, projectID string) (*Session, error) {
	for {
		s.mu.Lock()
		if sess, ok := s.sessions[projectID]; ok {
			s.mu.Unlock()
			return sess, nil
		}
		done, busy := s.loading[projectID]
		if !busy {
			done = make(chan struct{})
			s.loading[projectID] = done
		}
		s.mu.Unlock()

		if busy {
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		sess, err := s.openSession(ctx, projectID)

		s.mu.Lock()
		delete(s.loading, projectID)
		if err == nil {
			s.sessions[projectID] = sess
		}
		s.mu.Unlock()
		close(done)
		return sess, err
	}
}

func (s *Service) openSession(ctx context.Context, projectID string) (*Session, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sess := &Session{svc: s, project: p}
	if err := sess.load(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// CloseSession drops the cached session for a project. The next Open
// rebuilds the tree from the store.
func (s *Service) CloseSession(projectID string) {
	s.mu.Lock()
	delete(s.sessions, projectID)
	s.mu.Unlock()
}

// Projector returns the projector sessions use for Mount.
func (s *Service) Projector() *Projector {
	return s.projector
}

// records flattens root into new records for projectID.
func (s *Service) records(projectID string, root *Node) []Record {
	now := s.clock.Now()
	records := Flatten(root, projectID)
	for i := range records {
		records[i].ID = s.idgen.New()
		records[i].UpdatedAt = now
	}
	return records
}

// Session is the in-memory tree of one open project.
//
// Each change is computed on a new tree, written to the store, and only then
// published. When the store call fails the previous tree stays current, so
// the session never shows a state the store does not hold.
type Session struct {
	svc     *Service
	project *Project

	mu   sync.Mutex
	root *Node
}

// ProjectID returns the id of the session's project.
func (ss *Session) ProjectID() string {
	return ss.project.ID
}

// Tree returns the current tree. It must not be modified.
func (ss *Session) Tree() *Node {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.root
}

// Mount projects the current tree into the sandbox mount format.
func (ss *Session) Mount() (MountTree, []Warning) {
	return ss.svc.projector.Project(ss.Tree())
}

// Reload discards the in-memory tree and rebuilds it from the store.
func (ss *Session) Reload(ctx context.Context) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.load(ctx)
}

func (ss *Session) load(ctx context.Context) error {
	s := ss.svc
	records, err := s.store.ListRecords(ctx, ss.project.ID)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	if len(records) > 0 {
		ss.root = BuildTree(records, s.logger)
		s.logger.Debug("tree loaded", "project", ss.project.ID, "records", len(records))
		return nil
	}

	root, err := s.templates.Template(ss.project.Template)
	if err != nil {
		return fmt.Errorf("loading template %q: %w", ss.project.Template, err)
	}
	seeded := s.records(ss.project.ID, root)
	if err := s.store.CreateRecords(ctx, seeded); err != nil {
		return fmt.Errorf("seeding template %q: %w", ss.project.Template, err)
	}
	ss.root = root
	s.logger.Info("project seeded from template", "project", ss.project.ID, "template", ss.project.Template, "records", len(seeded))
	return nil
}

// AddFile creates a file under parentPath and returns its path.
func (ss *Session) AddFile(ctx context.Context, parentPath, filename, extension, content string) (string, error) {
	if err := ValidateFileName(filename, extension); err != nil {
		return "", err
	}
	return ss.add(ctx, parentPath, NewFile(filename, extension, content))
}

// AddFolder creates an empty folder under parentPath and returns its path.
func (ss *Session) AddFolder(ctx context.Context, parentPath, name string) (string, error) {
	if err := ValidateFolderName(name); err != nil {
		return "", err
	}
	return ss.add(ctx, parentPath, NewFolder(name))
}

func (ss *Session) add(ctx context.Context, parentPath string, n *Node) (string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	parent := Find(ss.root, parentPath)
	if parent == nil {
		return "", fmt.Errorf("%w: parent folder %q", ErrNotFound, parentPath)
	}
	if !parent.IsFolder() {
		return "", fmt.Errorf("%w: %q", ErrNotFolder, parentPath)
	}
	p := JoinPath(parentPath, n.Name())
	if Find(ss.root, p) != nil {
		return "", fmt.Errorf("%w: %q", ErrConflict, p)
	}

	next := Insert(ss.root, parentPath, n)
	rec := newRecord(ss.project.ID, parentPath, n)
	rec.ID = ss.svc.idgen.New()
	rec.UpdatedAt = ss.svc.clock.Now()

	if err := ss.svc.store.CreateRecords(ctx, []Record{rec}); err != nil {
		return "", ss.persistFailed("add", p, err)
	}
	ss.root = next
	ss.svc.logger.Debug("node added", "project", ss.project.ID, "path", p, "kind", n.Kind)
	return p, nil
}

// Delete removes the node at p and everything below it. Deleting a path that
// does not exist succeeds without doing anything.
func (ss *Session) Delete(ctx context.Context, p string) error {
	if p == "" {
		return fmt.Errorf("%w: the root folder cannot be deleted", ErrInvalidName)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	next := Delete(ss.root, p)
	if next == ss.root {
		return nil
	}
	n, err := ss.svc.store.DeleteByPath(ctx, ss.project.ID, p)
	if err != nil {
		return ss.persistFailed("delete", p, err)
	}
	ss.root = next
	ss.svc.logger.Debug("node deleted", "project", ss.project.ID, "path", p, "records", n)
	return nil
}

// RenameFile renames the file at p. A nil extension keeps the current one.
// Returns the file's new path.
func (ss *Session) RenameFile(ctx context.Context, p, filename string, extension *string) (string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	n := Find(ss.root, p)
	if n == nil || p == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, p)
	}
	if n.Kind != KindFile {
		return "", fmt.Errorf("%w: %q", ErrNotFile, p)
	}
	ext := n.Extension
	if extension != nil {
		ext = *extension
	}
	if err := ValidateFileName(filename, ext); err != nil {
		return "", err
	}
	newPath := FilePath(ParentPath(p), filename, ext)
	if newPath == p {
		return p, nil
	}
	if Find(ss.root, newPath) != nil {
		return "", fmt.Errorf("%w: %q", ErrConflict, newPath)
	}

	next := Rename(ss.root, p, filename, true, &ext)
	if _, err := ss.svc.store.RenameFile(ctx, ss.project.ID, p, filename, ext, ss.svc.clock.Now()); err != nil {
		return "", ss.persistFailed("rename file", p, err)
	}
	ss.root = next
	ss.svc.logger.Debug("file renamed", "project", ss.project.ID, "from", p, "to", newPath)
	return newPath, nil
}

// RenameFolder renames the folder at p, moving its whole subtree.
// Returns the folder's new path.
func (ss *Session) RenameFolder(ctx context.Context, p, newName string) (string, error) {
	if err := ValidateFolderName(newName); err != nil {
		return "", err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	n := Find(ss.root, p)
	if n == nil || p == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, p)
	}
	if n.Kind != KindFolder {
		return "", fmt.Errorf("%w: %q", ErrNotFolder, p)
	}
	newPath := FolderPath(ParentPath(p), newName)
	if newPath == p {
		return p, nil
	}
	if Find(ss.root, newPath) != nil {
		return "", fmt.Errorf("%w: %q", ErrConflict, newPath)
	}

	next := Rename(ss.root, p, newName, false, nil)
	if _, err := ss.svc.store.RenameFolder(ctx, ss.project.ID, p, newName, ss.svc.clock.Now()); err != nil {
		return "", ss.persistFailed("rename folder", p, err)
	}
	ss.root = next
	ss.svc.logger.Debug("folder renamed", "project", ss.project.ID, "from", p, "to", newPath)
	return newPath, nil
}

// SaveFile replaces the content of the file at p.
func (ss *Session) SaveFile(ctx context.Context, p, content string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	n := Find(ss.root, p)
	if n == nil || p == "" {
		return fmt.Errorf("%w: %q", ErrNotFound, p)
	}
	if n.Kind != KindFile {
		return fmt.Errorf("%w: %q", ErrNotFile, p)
	}
	if n.Content == content {
		return nil
	}

	next := UpdateContent(ss.root, p, content)
	if err := ss.svc.store.UpdateContent(ctx, ss.project.ID, p, content, ss.svc.clock.Now()); err != nil {
		return ss.persistFailed("save", p, err)
	}
	ss.root = next
	ss.svc.logger.Debug("file saved", "project", ss.project.ID, "path", p, "size", len(content))
	return nil
}

// SyncFile writes content to the file at p, creating the file and any
// missing parent folders when it does not exist yet.
func (ss *Session) SyncFile(ctx context.Context, p, content string) error {
	if n := Find(ss.Tree(), p); n != nil {
		return ss.SaveFile(ctx, p, content)
	}

	if err := ValidateFilePath(p); err != nil {
		return err
	}
	parent, filename, extension := SplitFilePath(p)
	if err := ss.ensureFolder(ctx, parent); err != nil {
		return err
	}
	_, err := ss.AddFile(ctx, parent, filename, extension, content)
	return err
}

func (ss *Session) ensureFolder(ctx context.Context, p string) error {
	if p == "" {
		return nil
	}
	n := Find(ss.Tree(), p)
	if n != nil {
		if !n.IsFolder() {
			return fmt.Errorf("%w: %q", ErrNotFolder, p)
		}
		return nil
	}
	parent := ParentPath(p)
	if err := ss.ensureFolder(ctx, parent); err != nil {
		return err
	}
	_, err := ss.AddFolder(ctx, parent, BaseName(p))
	return err
}

// persistFailed logs a store failure. The caller keeps the previous tree.
func (ss *Session) persistFailed(op, p string, err error) error {
	ss.svc.logger.Error("persisting change failed, tree unchanged", "project", ss.project.ID, "op", op, "path", p, "error", err)
	return fmt.Errorf("%s %q: %w", op, p, err)
}
