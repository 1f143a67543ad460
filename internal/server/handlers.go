package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"playground-go/internal/playground"
)

type projectResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Template    string    `json:"template"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Starred     bool      `json:"starred"`
}

func newProjectResponse(p *playground.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Template:    p.Template,
		UserID:      p.UserID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Starred:     p.Starred,
	}
}

type warningResponse struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type mountResponse struct {
	Tree     playground.MountTree `json:"tree"`
	Warnings []warningResponse    `json:"warnings"`
}

type projectRequest struct {
	Title       string `json:"title"`
	Template    string `json:"template"`
	Description string `json:"description"`
}

type starRequest struct {
	Marked bool `json:"marked"`
}

type addFileRequest struct {
	ParentPath string          `json:"parentPath"`
	IsFolder   bool            `json:"isFolder"`
	Name       string          `json:"name"`
	Extension  string          `json:"extension"`
	Content    json.RawMessage `json:"content"`
}

type saveFileRequest struct {
	Path    string          `json:"path"`
	Content json.RawMessage `json:"content"`
}

type renameRequest struct {
	Path      string  `json:"path"`
	Name      string  `json:"name"`
	Extension *string `json:"extension"`
}

type pathResponse struct {
	Path     string            `json:"path"`
	Warnings []warningResponse `json:"warnings,omitempty"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.templates != nil {
		names = s.templates.Names()
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, newProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.svc.CreateProject(r.Context(), req.Title, req.Template, req.Description, UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectResponse(p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.svc.UpdateProject(r.Context(), p.ID, req.Title, req.Description)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(updated))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	if s.sandboxes != nil {
		if err := s.sandboxes.Stop(p.ID); err != nil {
			s.logger.Warn("stopping sandbox failed", "project", p.ID, "error", err)
		}
	}
	if err := s.svc.DeleteProject(r.Context(), p.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	dup, err := s.svc.DuplicateProject(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectResponse(dup))
}

func (s *Server) handleStarProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	var req starRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.ToggleStar(r.Context(), p.ID, UserID(r.Context()), req.Marked); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p.Starred = req.Marked
	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Tree())
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tree, warnings := sess.Mount()
	resp := mountResponse{Tree: tree, Warnings: make([]warningResponse, 0, len(warnings))}
	for _, wn := range warnings {
		resp.Warnings = append(resp.Warnings, warningResponse{Path: wn.Path, Message: wn.Message})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req addFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		path     string
		warnings []warningResponse
		err      error
	)
	if req.IsFolder {
		path, err = sess.AddFolder(r.Context(), req.ParentPath, req.Name)
	} else {
		var content string
		content, warnings = s.content(playground.FilePath(req.ParentPath, req.Name, req.Extension), req.Content)
		path, err = sess.AddFile(r.Context(), req.ParentPath, req.Name, req.Extension, content)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pathResponse{Path: path, Warnings: warnings})
}

func (s *Server) handleSaveFile(w http.ResponseWriter, r *http.Request) {
	p, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req saveFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content, warnings := s.content(req.Path, req.Content)
	if err := sess.SaveFile(r.Context(), req.Path, content); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if s.sandboxes != nil {
		if pipe := s.sandboxes.Running(p.ID); pipe != nil {
			if err := pipe.WriteFile(r.Context(), req.Path, content); err != nil {
				s.logger.Warn("sandbox write failed", "project", p.ID, "path", req.Path, "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, pathResponse{Path: req.Path, Warnings: warnings})
}

// content turns a request's content value into text. Values that are not
// strings are coerced and reported as a warning.
func (s *Server) content(path string, raw json.RawMessage) (string, []warningResponse) {
	content, coerced := playground.DecodeContent(raw)
	if !coerced {
		return content, nil
	}
	s.logger.Warn("content coerced to text", "path", path)
	return content, []warningResponse{{Path: path, Message: playground.ContentCoerced}}
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n := playground.Find(sess.Tree(), req.Path)
	if n == nil {
		writeError(w, http.StatusNotFound, "no file or folder at "+req.Path)
		return
	}

	var (
		path string
		err  error
	)
	switch n.Kind {
	case playground.KindFolder:
		path, err = sess.RenameFolder(r.Context(), req.Path, req.Name)
	case playground.KindFile:
		path, err = sess.RenameFile(r.Context(), req.Path, req.Name, req.Extension)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{Path: path})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	if err := sess.Delete(r.Context(), path); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// project loads the project named in the URL. Projects owned by someone
// else are reported as missing.
func (s *Server) project(w http.ResponseWriter, r *http.Request) (*playground.Project, bool) {
	id := chi.URLParam(r, "projectID")
	p, err := s.svc.GetProject(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	if p.UserID != UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "project not found")
		return nil, false
	}
	return p, true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*playground.Project, *playground.Session, bool) {
	p, ok := s.project(w, r)
	if !ok {
		return nil, nil, false
	}
	sess, err := s.svc.Open(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, nil, false
	}
	return p, sess, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, playground.ErrProjectNotFound), errors.Is(err, playground.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, playground.ErrConflict), errors.Is(err, playground.ErrSetupInProgress):
		return http.StatusConflict
	case errors.Is(err, playground.ErrInvalidName), errors.Is(err, playground.ErrNotFolder), errors.Is(err, playground.ErrNotFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
