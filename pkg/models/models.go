package models

import "fmt"

// Scope indicates whether a statement pair comes from one document or two.
type Scope string

const (
	ScopeInternal Scope = "internal"
	ScopeCross    Scope = "cross"
)

// Statement represents a single normalized assertion extracted from a document.
// Index is the statement's position within its source document.
type Statement struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}

// Before reports whether s precedes o in the canonical statement order
// (ascending document id, then ascending index).
func (s Statement) Before(o Statement) bool {
	if s.DocumentID != o.DocumentID {
		return s.DocumentID < o.DocumentID
	}
	return s.Index < o.Index
}

// DocumentStatements is the input contract: one document's ordered,
// non-empty statement texts keyed by an opaque document identifier.
type DocumentStatements struct {
	DocumentID string   `json:"document_id"`
	Statements []string `json:"statements"`
}

// StatementPair is an unordered pair of statements to compare. A and B are
// held in canonical order so that equal pairs compare equal regardless of
// how they were constructed.
type StatementPair struct {
	A     Statement `json:"statement1"`
	B     Statement `json:"statement2"`
	Scope Scope     `json:"scope"`
}

// NewStatementPair builds a pair in canonical order and derives its scope.
func NewStatementPair(a, b Statement) StatementPair {
	if b.Before(a) {
		a, b = b, a
	}
	scope := ScopeCross
	if a.DocumentID == b.DocumentID {
		scope = ScopeInternal
	}
	return StatementPair{A: a, B: b, Scope: scope}
}

// Key returns the canonical, order-independent identifier for the pair,
// derived from both statements' (document_id, index) tuples.
func (p StatementPair) Key() string {
	return fmt.Sprintf("%s#%d|%s#%d", p.A.DocumentID, p.A.Index, p.B.DocumentID, p.B.Index)
}

// RelationScores is a probability distribution over the three NLI labels.
// Scores are non-negative and sum to 1 within floating tolerance.
type RelationScores struct {
	Entailment    float64 `json:"entailment"`
	Neutral       float64 `json:"neutral"`
	Contradiction float64 `json:"contradiction"`
}

// Merge combines two directional score sets into a symmetric one by taking
// the per-label maximum.
func (s RelationScores) Merge(o RelationScores) RelationScores {
	return RelationScores{
		Entailment:    max(s.Entailment, o.Entailment),
		Neutral:       max(s.Neutral, o.Neutral),
		Contradiction: max(s.Contradiction, o.Contradiction),
	}
}

// Confidence measures how much the contradiction label dominates the
// others; it is zero when entailment or neutral scores at least as high.
func (s RelationScores) Confidence() float64 {
	c := s.Contradiction - max(s.Entailment, s.Neutral)
	if c < 0 {
		return 0
	}
	return c
}

// ClassificationResult is the classifier's verdict for one pair.
type ClassificationResult struct {
	PairKey   string         `json:"pair_key"`
	Scores    RelationScores `json:"scores"`
	Truncated bool           `json:"truncated,omitempty"`
}

// Severity buckets a contradiction score into a human-facing band.
type Severity string

const (
	SeverityVeryHigh Severity = "very_high"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityVeryLow  Severity = "very_low"
)

// SeverityForScore maps a contradiction score to its severity band.
func SeverityForScore(score float64) Severity {
	switch {
	case score >= 0.8:
		return SeverityVeryHigh
	case score >= 0.6:
		return SeverityHigh
	case score >= 0.4:
		return SeverityMedium
	case score >= 0.2:
		return SeverityLow
	default:
		return SeverityVeryLow
	}
}

// WarningTruncatedInput marks a pair whose statement text was cut to the
// model's maximum input length before classification.
const WarningTruncatedInput = "truncated_input"

// ContradictionRecord is one reported finding.
type ContradictionRecord struct {
	Statement1         Statement `json:"statement1"`
	Statement2         Statement `json:"statement2"`
	Scope              Scope     `json:"scope"`
	ContradictionScore float64   `json:"contradiction_score"`
	EntailmentScore    float64   `json:"entailment_score"`
	NeutralScore       float64   `json:"neutral_score"`
	Confidence         float64   `json:"confidence"`
	Severity           Severity  `json:"severity"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// PairKey returns the canonical key of the record's statement pair.
func (r ContradictionRecord) PairKey() string {
	return NewStatementPair(r.Statement1, r.Statement2).Key()
}

// DocumentConsistency summarizes how internally consistent one document is.
type DocumentConsistency struct {
	DocumentID        string  `json:"document_id"`
	Statements        int     `json:"statements"`
	PairsChecked      int     `json:"pairs_checked"`
	Contradictions    int     `json:"contradictions"`
	ContradictionRate float64 `json:"contradiction_rate"`
	ConsistencyScore  float64 `json:"consistency_score"`
}

// ReportSummary holds run-level counts computed from the final record set.
type ReportSummary struct {
	Total              int     `json:"total"`
	Internal           int     `json:"internal"`
	Cross              int     `json:"cross"`
	Warnings           int     `json:"warnings"`
	CandidatePairs     int     `json:"candidate_pairs"`
	ClassifiedPairs    int     `json:"classified_pairs"`
	FailedPairs        int     `json:"failed_pairs"`
	OverallConsistency float64 `json:"overall_consistency"`
}

// ContradictionReport is the terminal artifact of one analysis run:
// ranked, deduplicated findings plus summary counts. Immutable after
// assembly.
type ContradictionReport struct {
	Model     string                `json:"model"`
	Threshold float64               `json:"threshold"`
	Records   []ContradictionRecord `json:"records"`
	Documents []DocumentConsistency `json:"documents"`
	Summary   ReportSummary         `json:"summary"`
}
