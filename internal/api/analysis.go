package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/doc-checker/internal/engine"
	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/pairs"
	"github.com/todmy/doc-checker/internal/similarity"
	"github.com/todmy/doc-checker/internal/storage"
	"github.com/todmy/doc-checker/pkg/models"
)

// AnalysisRequest carries per-run overrides on top of the server's base
// config. Omitted fields keep the base value.
type AnalysisRequest struct {
	Scope         string   `json:"scope,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
	MaxPairs      *int     `json:"max_pairs,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

// AnalysisResponse pairs the stored run id with the full report.
type AnalysisResponse struct {
	RunID  string                      `json:"run_id"`
	Report *models.ContradictionReport `json:"report"`
}

// RunResponse is one stored analysis run.
type RunResponse struct {
	ID                 string  `json:"id"`
	Model              string  `json:"model"`
	Scope              string  `json:"scope"`
	Threshold          float64 `json:"threshold"`
	Total              int     `json:"total"`
	Internal           int     `json:"internal"`
	Cross              int     `json:"cross"`
	Warnings           int     `json:"warnings"`
	CandidatePairs     int     `json:"candidate_pairs"`
	ClassifiedPairs    int     `json:"classified_pairs"`
	FailedPairs        int     `json:"failed_pairs"`
	OverallConsistency float64 `json:"overall_consistency"`
	CreatedAt          string  `json:"created_at"`
}

// FindingResponse is one ranked contradiction finding.
type FindingResponse struct {
	Rank               int      `json:"rank"`
	Document1          string   `json:"document1"`
	Index1             int      `json:"index1"`
	Text1              string   `json:"text1"`
	Document2          string   `json:"document2"`
	Index2             int      `json:"index2"`
	Text2              string   `json:"text2"`
	Scope              string   `json:"scope"`
	ContradictionScore float64  `json:"contradiction_score"`
	EntailmentScore    float64  `json:"entailment_score"`
	NeutralScore       float64  `json:"neutral_score"`
	Confidence         float64  `json:"confidence"`
	Severity           string   `json:"severity"`
	Warnings           []string `json:"warnings,omitempty"`
}

func findingResponse(f *storage.Finding) FindingResponse {
	return FindingResponse{
		Rank:               f.Rank,
		Document1:          f.Document1,
		Index1:             f.Index1,
		Text1:              f.Text1,
		Document2:          f.Document2,
		Index2:             f.Index2,
		Text2:              f.Text2,
		Scope:              f.Scope,
		ContradictionScore: f.ContradictionScore,
		EntailmentScore:    f.EntailmentScore,
		NeutralScore:       f.NeutralScore,
		Confidence:         f.Confidence,
		Severity:           f.Severity,
		Warnings:           f.Warnings,
	}
}

func runResponse(run *storage.AnalysisRun) RunResponse {
	return RunResponse{
		ID:                 run.ID.String(),
		Model:              run.Model,
		Scope:              run.Scope,
		Threshold:          run.Threshold,
		Total:              run.Total,
		Internal:           run.Internal,
		Cross:              run.Cross,
		Warnings:           run.Warnings,
		CandidatePairs:     run.CandidatePairs,
		ClassifiedPairs:    run.ClassifiedPairs,
		FailedPairs:        run.FailedPairs,
		OverallConsistency: run.OverallConsistency,
		CreatedAt:          run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleAnalyze runs contradiction detection over the project's stored
// documents, persists the result and returns the report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}

	cfg := s.baseConfig
	var req AnalysisRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Scope != "" {
		cfg.Scope = pairs.Scope(req.Scope)
	}
	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}
	if req.MaxPairs != nil {
		cfg.MaxPairs = *req.MaxPairs
	}
	if req.MinSimilarity != nil {
		cfg.MinSimilarity = *req.MinSimilarity
	}

	docs, err := s.documentRepo.ListByProjectID(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch documents")
		return
	}
	if len(docs) == 0 {
		respondError(w, http.StatusBadRequest, "project has no documents")
		return
	}

	statements, err := s.documentRepo.StatementsByProjectID(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch statements")
		return
	}

	var opts []engine.Option
	if cfg.MinSimilarity > 0 {
		opts = append(opts, engine.WithPrefilter(buildEmbeddingIndex(docs, statements)))
	}

	report, err := engine.New(s.classifier, opts...).Run(
		r.Context(), storage.ToDocumentStatements(docs, statements), cfg)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidConfig):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, pairs.ErrResourceLimitExceeded):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, nli.ErrModelUnavailable):
			respondError(w, http.StatusBadGateway, "relation model unavailable")
		default:
			respondError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	log.Printf("[api] analysis of project %s finished: %d findings from %d classified pairs (%d failed, %d warnings)",
		project.ID, report.Summary.Total, report.Summary.ClassifiedPairs,
		report.Summary.FailedPairs, report.Summary.Warnings)

	run, findings := storage.FromReport(project.ID, string(cfg.Scope), report)
	if err := s.runRepo.Create(r.Context(), run, findings); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store report")
		return
	}

	respondJSON(w, http.StatusOK, AnalysisResponse{
		RunID:  run.ID.String(),
		Report: report,
	})
}

// buildEmbeddingIndex loads stored statement embeddings into a prefilter
// index. Statements without an embedding are simply absent, which the
// engine treats as "classify anyway".
func buildEmbeddingIndex(docs []*storage.Document, statements map[uuid.UUID][]*storage.Statement) *similarity.EmbeddingIndex {
	index := similarity.NewEmbeddingIndex()
	for _, d := range docs {
		for _, st := range statements[d.ID] {
			vec := st.Embedding.Slice()
			if len(vec) == 0 {
				continue
			}
			index.Add(models.Statement{
				DocumentID: d.Name,
				Index:      st.Position,
				Text:       st.Text,
			}, vec)
		}
	}
	return index
}

// handleListRuns returns the project's stored runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}

	runs, err := s.runRepo.ListByProjectID(r.Context(), project.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch runs")
		return
	}

	response := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, runResponse(run))
	}

	respondJSON(w, http.StatusOK, response)
}

// handleGetRun returns one stored run with its ranked findings.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	project := s.ownedProject(w, r)
	if project == nil {
		return
	}

	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.runRepo.GetByID(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}
	if run == nil || run.ProjectID != project.ID {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	findings, err := s.runRepo.FindingsByRunID(r.Context(), run.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch findings")
		return
	}

	response := make([]FindingResponse, 0, len(findings))
	for _, f := range findings {
		response = append(response, findingResponse(f))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":      runResponse(run),
		"findings": response,
	})
}
