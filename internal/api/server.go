package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/todmy/doc-checker/internal/auth"
	"github.com/todmy/doc-checker/internal/engine"
	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/storage"
)

// Embedder produces statement embeddings at upload time. Optional; only
// needed when the similarity prefilter is in use.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type Server struct {
	router       *chi.Mux
	authService  *auth.Service
	classifier   nli.Classifier
	embedder     Embedder
	baseConfig   engine.Config
	projectRepo  storage.ProjectRepository
	documentRepo storage.DocumentRepository
	runRepo      storage.RunRepository
}

// Deps bundles everything the server needs. BaseConfig is the analysis
// config requests start from before applying their overrides.
type Deps struct {
	AuthService  *auth.Service
	Classifier   nli.Classifier
	Embedder     Embedder
	BaseConfig   engine.Config
	ProjectRepo  storage.ProjectRepository
	DocumentRepo storage.DocumentRepository
	RunRepo      storage.RunRepository
}

func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:       r,
		authService:  deps.AuthService,
		classifier:   deps.Classifier,
		embedder:     deps.Embedder,
		baseConfig:   deps.BaseConfig,
		projectRepo:  deps.ProjectRepo,
		documentRepo: deps.DocumentRepo,
		runRepo:      deps.RunRepo,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authService))

			// Projects
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", s.handleListProjects)
				r.Post("/", s.handleCreateProject)
				r.Get("/{projectID}", s.handleGetProject)
				r.Delete("/{projectID}", s.handleDeleteProject)

				// Documents
				r.Post("/{projectID}/documents", s.handleUploadDocument)
				r.Get("/{projectID}/documents", s.handleListDocuments)

				// Analysis
				r.Post("/{projectID}/analyze", s.handleAnalyze)
				r.Get("/{projectID}/runs", s.handleListRuns)
				r.Get("/{projectID}/runs/{runID}", s.handleGetRun)
			})
		})
	})
}

// Handler exposes the router for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// Helper to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
