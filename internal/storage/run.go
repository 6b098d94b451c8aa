package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/todmy/doc-checker/pkg/models"
)

// AnalysisRun records one completed engine run and its summary counts.
type AnalysisRun struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	Model              string
	Scope              string
	Threshold          float64
	Total              int
	Internal           int
	Cross              int
	Warnings           int
	CandidatePairs     int
	ClassifiedPairs    int
	FailedPairs        int
	OverallConsistency float64
	CreatedAt          time.Time
}

// Finding is one persisted contradiction record, ranked within its run.
type Finding struct {
	ID                 uuid.UUID
	RunID              uuid.UUID
	Rank               int
	Document1          string
	Index1             int
	Text1              string
	Document2          string
	Index2             int
	Text2              string
	Scope              string
	ContradictionScore float64
	EntailmentScore    float64
	NeutralScore       float64
	Confidence         float64
	Severity           string
	Warnings           []string
}

// RunRepository defines analysis-run persistence.
type RunRepository interface {
	Create(ctx context.Context, run *AnalysisRun, findings []*Finding) error
	GetByID(ctx context.Context, id uuid.UUID) (*AnalysisRun, error)
	ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]*AnalysisRun, error)
	FindingsByRunID(ctx context.Context, runID uuid.UUID) ([]*Finding, error)
}

// PostgresRunRepository implements RunRepository on PostgreSQL.
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a run repository.
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// Create inserts the run and its findings in one transaction.
func (r *PostgresRunRepository) Create(ctx context.Context, run *AnalysisRun, findings []*Finding) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, project_id, model, scope, threshold,
			total, internal, cross_count, warnings,
			candidate_pairs, classified_pairs, failed_pairs,
			overall_consistency, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, run.ID, run.ProjectID, run.Model, run.Scope, run.Threshold,
		run.Total, run.Internal, run.Cross, run.Warnings,
		run.CandidatePairs, run.ClassifiedPairs, run.FailedPairs,
		run.OverallConsistency, run.CreatedAt)
	if err != nil {
		return err
	}

	for _, f := range findings {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.RunID = run.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO findings (
				id, run_id, rank,
				document1, index1, text1,
				document2, index2, text2,
				scope, contradiction_score, entailment_score, neutral_score,
				confidence, severity, warnings
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, f.ID, f.RunID, f.Rank,
			f.Document1, f.Index1, f.Text1,
			f.Document2, f.Index2, f.Text2,
			f.Scope, f.ContradictionScore, f.EntailmentScore, f.NeutralScore,
			f.Confidence, f.Severity, pq.Array(f.Warnings))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*AnalysisRun, error) {
	var run AnalysisRun
	err := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, model, scope, threshold,
			total, internal, cross_count, warnings,
			candidate_pairs, classified_pairs, failed_pairs,
			overall_consistency, created_at
		FROM analysis_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.ProjectID, &run.Model, &run.Scope, &run.Threshold,
		&run.Total, &run.Internal, &run.Cross, &run.Warnings,
		&run.CandidatePairs, &run.ClassifiedPairs, &run.FailedPairs,
		&run.OverallConsistency, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *PostgresRunRepository) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]*AnalysisRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, model, scope, threshold,
			total, internal, cross_count, warnings,
			candidate_pairs, classified_pairs, failed_pairs,
			overall_consistency, created_at
		FROM analysis_runs WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		var run AnalysisRun
		if err := rows.Scan(&run.ID, &run.ProjectID, &run.Model, &run.Scope, &run.Threshold,
			&run.Total, &run.Internal, &run.Cross, &run.Warnings,
			&run.CandidatePairs, &run.ClassifiedPairs, &run.FailedPairs,
			&run.OverallConsistency, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (r *PostgresRunRepository) FindingsByRunID(ctx context.Context, runID uuid.UUID) ([]*Finding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, rank,
			document1, index1, text1,
			document2, index2, text2,
			scope, contradiction_score, entailment_score, neutral_score,
			confidence, severity, warnings
		FROM findings WHERE run_id = $1
		ORDER BY rank
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []*Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.RunID, &f.Rank,
			&f.Document1, &f.Index1, &f.Text1,
			&f.Document2, &f.Index2, &f.Text2,
			&f.Scope, &f.ContradictionScore, &f.EntailmentScore, &f.NeutralScore,
			&f.Confidence, &f.Severity, pq.Array(&f.Warnings)); err != nil {
			return nil, err
		}
		findings = append(findings, &f)
	}
	return findings, rows.Err()
}

// FromReport converts a finished report into its storable run and ranked
// findings.
func FromReport(projectID uuid.UUID, scope string, rep *models.ContradictionReport) (*AnalysisRun, []*Finding) {
	run := &AnalysisRun{
		ProjectID:          projectID,
		Model:              rep.Model,
		Scope:              scope,
		Threshold:          rep.Threshold,
		Total:              rep.Summary.Total,
		Internal:           rep.Summary.Internal,
		Cross:              rep.Summary.Cross,
		Warnings:           rep.Summary.Warnings,
		CandidatePairs:     rep.Summary.CandidatePairs,
		ClassifiedPairs:    rep.Summary.ClassifiedPairs,
		FailedPairs:        rep.Summary.FailedPairs,
		OverallConsistency: rep.Summary.OverallConsistency,
	}

	findings := make([]*Finding, len(rep.Records))
	for i, rec := range rep.Records {
		findings[i] = &Finding{
			Rank:               i + 1,
			Document1:          rec.Statement1.DocumentID,
			Index1:             rec.Statement1.Index,
			Text1:              rec.Statement1.Text,
			Document2:          rec.Statement2.DocumentID,
			Index2:             rec.Statement2.Index,
			Text2:              rec.Statement2.Text,
			Scope:              string(rec.Scope),
			ContradictionScore: rec.ContradictionScore,
			EntailmentScore:    rec.EntailmentScore,
			NeutralScore:       rec.NeutralScore,
			Confidence:         rec.Confidence,
			Severity:           string(rec.Severity),
			Warnings:           rec.Warnings,
		}
	}
	return run, findings
}
