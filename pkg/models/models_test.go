package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatementPairCanonicalOrder(t *testing.T) {
	a := Statement{DocumentID: "b", Index: 0, Text: "x"}
	b := Statement{DocumentID: "a", Index: 3, Text: "y"}

	p := NewStatementPair(a, b)
	assert.Equal(t, "a", p.A.DocumentID)
	assert.Equal(t, "b", p.B.DocumentID)
	assert.Equal(t, ScopeCross, p.Scope)

	// Both constructions yield the same key.
	q := NewStatementPair(b, a)
	assert.Equal(t, p.Key(), q.Key())
	assert.Equal(t, "a#3|b#0", p.Key())
}

func TestRelationScoresMerge(t *testing.T) {
	a := RelationScores{Entailment: 0.1, Neutral: 0.2, Contradiction: 0.9}
	b := RelationScores{Entailment: 0.3, Neutral: 0.1, Contradiction: 0.4}

	merged := a.Merge(b)
	assert.Equal(t, RelationScores{Entailment: 0.3, Neutral: 0.2, Contradiction: 0.9}, merged)
	assert.Equal(t, merged, b.Merge(a))
}

func TestRelationScoresConfidence(t *testing.T) {
	assert.InDelta(t, 0.75, RelationScores{Entailment: 0.05, Neutral: 0.1, Contradiction: 0.85}.Confidence(), 1e-9)

	// Never negative, even when contradiction is not the top label.
	assert.Equal(t, 0.0, RelationScores{Entailment: 0.8, Neutral: 0.1, Contradiction: 0.1}.Confidence())
}

func TestSeverityForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0.9, SeverityVeryHigh},
		{0.8, SeverityVeryHigh},
		{0.7, SeverityHigh},
		{0.5, SeverityMedium},
		{0.3, SeverityLow},
		{0.1, SeverityVeryLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SeverityForScore(tc.score), "score %v", tc.score)
	}
}

func TestStatementBefore(t *testing.T) {
	assert.True(t, Statement{DocumentID: "a", Index: 5}.Before(Statement{DocumentID: "b", Index: 0}))
	assert.True(t, Statement{DocumentID: "a", Index: 0}.Before(Statement{DocumentID: "a", Index: 1}))
	assert.False(t, Statement{DocumentID: "a", Index: 1}.Before(Statement{DocumentID: "a", Index: 1}))
}
