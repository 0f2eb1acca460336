package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"sitebuilder/internal/app"
	"sitebuilder/internal/usertoken"
	"sitebuilder/internal/util"
	"sitebuilder/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	TokenVerifier *usertoken.Verifier
}

// Server exposes HTTP endpoints for the site builder backend.
type Server struct {
	app           *app.App
	tokenVerifier *usertoken.Verifier
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	if cfg.TokenVerifier == nil {
		return nil, fmt.Errorf("token verifier required")
	}
	s := &Server{
		app:           cfg.App,
		tokenVerifier: cfg.TokenVerifier,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// current user (auth required)
	s.mux.Handle("/api/user/credits", s.authenticated(s.handleCredits))
	s.mux.Handle("/api/user/projects", s.authenticated(s.handleProjects))
	s.mux.Handle("/api/user/projects/", s.authenticated(s.handleProjectByID))

	// project operations; published feed and site are public
	s.mux.HandleFunc("/api/projects/published", s.handlePublishedFeed)
	s.mux.HandleFunc("/api/projects/", s.handleProjectOps)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	subject, err := s.tokenVerifier.VerifySubject(token)
	if err != nil {
		slog.Warn("token verify failed", "path", r.URL.Path, "error", err)
		return domain.User{}, false
	}
	user, err := s.app.EnsureUser(subject)
	if err != nil {
		slog.Error("ensure user failed", "user_id", subject, "error", err)
		return domain.User{}, false
	}
	return user, true
}

// handlers

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	credits, err := s.app.Credits(user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"credits": credits})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.app.ListProjects(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
	case http.MethodPost:
		var req createProjectRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		project, err := s.app.CreateProject(r.Context(), user, req.Prompt)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"projectId": project.ID,
			"project":   project,
			"message":   "Project created successfully!",
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/user/projects/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	detail, err := s.app.GetProjectDetail(user, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handlePublishedFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	projects, err := s.app.ListPublished()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleProjectOps dispatches /api/projects/{id}[/...]. The site route is
// public; everything else requires the owner's token.
func (s *Server) handleProjectOps(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/projects/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || parts[0] == "" {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	projectID := parts[0]

	if len(parts) == 2 && parts[1] == "site" {
		s.handleSite(w, r, projectID)
		return
	}

	user, ok := s.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDelete(w, r, user, projectID)
	case len(parts) == 2 && parts[1] == "revisions" && r.Method == http.MethodPost:
		s.handleRevision(w, r, user, projectID)
	case len(parts) == 3 && parts[1] == "rollback" && r.Method == http.MethodPost:
		s.handleRollback(w, r, user, projectID, parts[2])
	case len(parts) == 2 && parts[1] == "code" && r.Method == http.MethodPut:
		s.handleSaveCode(w, r, user, projectID)
	case len(parts) == 2 && parts[1] == "publish" && r.Method == http.MethodPost:
		s.handlePublish(w, r, user, projectID)
	case len(parts) == 1:
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleRevision(w http.ResponseWriter, r *http.Request, user domain.User, projectID string) {
	var req revisionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.app.RequestRevision(r.Context(), user, projectID, req.Message)
	if errors.Is(err, app.ErrGenerationEmpty) {
		// The model produced nothing; the debit was refunded. Not a
		// transport failure, so the caller gets a settled response.
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Unable to generate the code. Please try again",
		})
		return
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Changes made successfully.",
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request, user domain.User, projectID, versionID string) {
	if err := s.app.Rollback(user, projectID, versionID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Version rolled back",
	})
}

func (s *Server) handleSaveCode(w http.ResponseWriter, r *http.Request, user domain.User, projectID string) {
	var req saveCodeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<22)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.SaveCode(user, projectID, req.Code); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Project saved successfully!",
	})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, user domain.User, projectID string) {
	project, err := s.app.TogglePublish(user, projectID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	message := "Project unpublished"
	if project.Published {
		message = "Project published!"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project": project,
		"message": message,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, user domain.User, projectID string) {
	if err := s.app.DeleteProject(user, projectID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Project deleted successfully.",
	})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	code, err := s.app.PublishedCode(projectID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	// Generated sites load Tailwind and fonts from CDNs, so the JSON-API
	// CSP must be relaxed for this route.
	w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, code)
}

// request payloads
type createProjectRequest struct {
	Prompt string `json:"prompt"`
}

type revisionRequest struct {
	Message string `json:"message"`
}

type saveCodeRequest struct {
	Code string `json:"code"`
}

// helpers

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Please enter a valid prompt.")
	case errors.Is(err, app.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "Not enough credits, please purchase some.")
	case errors.Is(err, app.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "Project not found!")
	case errors.Is(err, app.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "Version not found!")
	case errors.Is(err, app.ErrGenerationInFlight):
		writeError(w, http.StatusConflict, "A generation is already in progress for this project.")
	default:
		slog.Error("request failed", "path", r.URL.Path, "method", r.Method, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
