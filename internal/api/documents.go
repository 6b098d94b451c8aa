package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pgvector/pgvector-go"

	"github.com/todmy/doc-checker/internal/storage"
)

const maxUploadSize = 10 << 20 // 10 MB

// DocumentRequest is an uploaded statement stream. Statements arrive
// already segmented, in document order.
type DocumentRequest struct {
	Name       string   `json:"name"`
	Statements []string `json:"statements"`
}

// DocumentResponse represents a stored document in API responses
type DocumentResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Statements int    `json:"statements,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// handleUploadDocument stores a statement stream under a project.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	for _, text := range req.Statements {
		if text == "" {
			respondError(w, http.StatusBadRequest, "statements must be non-empty")
			return
		}
	}

	doc := &storage.Document{
		ProjectID: project.ID,
		Name:      req.Name,
	}
	statements := make([]*storage.Statement, len(req.Statements))
	for i, text := range req.Statements {
		statements[i] = &storage.Statement{Position: i, Text: text}
	}

	// Embeddings only feed the optional similarity prefilter, so a
	// failed embedder call degrades the upload rather than failing it.
	if s.embedder != nil && len(req.Statements) > 0 {
		vectors, err := s.embedder.EmbedTexts(r.Context(), req.Statements)
		if err != nil {
			log.Printf("[api] embedding %q failed, storing without embeddings: %v", req.Name, err)
		} else {
			for i := range statements {
				statements[i].Embedding = pgvector.NewVector(vectors[i])
			}
		}
	}

	if err := s.documentRepo.Create(r.Context(), doc, statements); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	respondJSON(w, http.StatusCreated, DocumentResponse{
		ID:         doc.ID.String(),
		Name:       doc.Name,
		Statements: len(statements),
		CreatedAt:  doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// handleListDocuments returns the project's documents in upload order.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}

	docs, err := s.documentRepo.ListByProjectID(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch documents")
		return
	}

	response := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		response = append(response, DocumentResponse{
			ID:        d.ID.String(),
			Name:      d.Name,
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	respondJSON(w, http.StatusOK, response)
}
