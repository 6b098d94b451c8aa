package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/doc-checker/internal/auth"
	"github.com/todmy/doc-checker/internal/storage"
)

// ProjectRequest represents a project creation request
type ProjectRequest struct {
	Name string `json:"name"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func projectResponse(p *storage.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// userID extracts the authenticated user's id from the request context.
func userID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return uid, true
}

// ownedProject loads the project from the URL and verifies the caller owns
// it, writing the error response itself when it returns nil.
func (s *Server) ownedProject(w http.ResponseWriter, r *http.Request) *storage.Project {
	pid, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return nil
	}

	project, err := s.projectRepo.GetByID(r.Context(), pid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch project")
		return nil
	}
	if project == nil {
		respondError(w, http.StatusNotFound, "project not found")
		return nil
	}

	uid, ok := userID(r)
	if !ok || project.UserID != uid {
		respondError(w, http.StatusForbidden, "access denied")
		return nil
	}
	return project
}

// handleListProjects returns all projects for the authenticated user
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projects, err := s.projectRepo.ListByUserID(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch projects")
		return
	}

	response := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		response = append(response, projectResponse(p))
	}

	respondJSON(w, http.StatusOK, response)
}

// handleCreateProject creates a new project
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := &storage.Project{
		UserID: uid,
		Name:   req.Name,
	}

	if err := s.projectRepo.Create(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, projectResponse(project))
}

// handleGetProject returns a specific project
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}
	respondJSON(w, http.StatusOK, projectResponse(project))
}

// handleDeleteProject deletes a project
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}

	if err := s.projectRepo.Delete(r.Context(), project.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
