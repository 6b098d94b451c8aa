package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/todmy/doc-checker/pkg/models"
)

// Document is one uploaded statement stream. Name is the opaque document
// identifier used in reports.
type Document struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Statement is one stored statement; Position is its index within the
// document. The embedding is optional and only feeds the similarity
// prefilter.
type Statement struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Position   int
	Text       string
	Embedding  pgvector.Vector
	CreatedAt  time.Time
}

// DocumentRepository defines document and statement persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document, statements []*Statement) error
	ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]*Document, error)
	StatementsByProjectID(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID][]*Statement, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgresDocumentRepository implements DocumentRepository on PostgreSQL
// with pgvector-backed embeddings.
type PostgresDocumentRepository struct {
	db *sql.DB
}

// NewPostgresDocumentRepository creates a document repository.
func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{db: db}
}

// Create inserts the document and its statements in one transaction.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *Document, statements []*Statement) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, doc.ID, doc.ProjectID, doc.Name, doc.CreatedAt)
	if err != nil {
		return err
	}

	for _, s := range statements {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.DocumentID = doc.ID
		if s.CreatedAt.IsZero() {
			s.CreatedAt = doc.CreatedAt
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO statements (id, document_id, position, text, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, s.DocumentID, s.Position, s.Text, s.Embedding, s.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresDocumentRepository) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]*Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, name, created_at
		FROM documents WHERE project_id = $1
		ORDER BY created_at, name
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// StatementsByProjectID returns every statement grouped by document id,
// ordered by position within each document.
func (r *PostgresDocumentRepository) StatementsByProjectID(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID][]*Statement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.document_id, s.position, s.text, s.embedding, s.created_at
		FROM statements s
		JOIN documents d ON d.id = s.document_id
		WHERE d.project_id = $1
		ORDER BY s.document_id, s.position
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[uuid.UUID][]*Statement)
	for rows.Next() {
		var s Statement
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Position, &s.Text, &s.Embedding, &s.CreatedAt); err != nil {
			return nil, err
		}
		grouped[s.DocumentID] = append(grouped[s.DocumentID], &s)
	}
	return grouped, rows.Err()
}

func (r *PostgresDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ToDocumentStatements converts stored documents into the engine's input
// contract, preserving document order and statement positions.
func ToDocumentStatements(docs []*Document, statements map[uuid.UUID][]*Statement) []models.DocumentStatements {
	out := make([]models.DocumentStatements, 0, len(docs))
	for _, d := range docs {
		ds := models.DocumentStatements{DocumentID: d.Name}
		for _, s := range statements[d.ID] {
			ds.Statements = append(ds.Statements, s.Text)
		}
		out = append(out, ds)
	}
	return out
}
