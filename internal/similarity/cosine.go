// Package similarity provides embedding cosine similarity and the
// optional pre-classification filter built on it.
package similarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/todmy/doc-checker/pkg/models"
)

// Cosine calculates the cosine similarity between two vectors. Returns a
// value between -1 and 1; mismatched or empty vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	af := make([]float64, len(a))
	bf := make([]float64, len(b))
	for i := range a {
		af[i] = float64(a[i])
		bf[i] = float64(b[i])
	}

	dot := floats.Dot(af, bf)
	magA := math.Sqrt(floats.Dot(af, af))
	magB := math.Sqrt(floats.Dot(bf, bf))
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (magA * magB)
}

// EmbeddingIndex maps statements to their embeddings and answers pairwise
// similarity queries. It satisfies the engine's prefilter contract; pairs
// with a missing embedding are not filtered.
type EmbeddingIndex struct {
	vectors map[string][]float32
}

// NewEmbeddingIndex creates an empty index.
func NewEmbeddingIndex() *EmbeddingIndex {
	return &EmbeddingIndex{vectors: make(map[string][]float32)}
}

// Add registers a statement's embedding.
func (x *EmbeddingIndex) Add(s models.Statement, embedding []float32) {
	x.vectors[statementKey(s)] = embedding
}

// Similarity returns the cosine similarity of two statements' embeddings.
// The second return is false when either embedding is unknown.
func (x *EmbeddingIndex) Similarity(a, b models.Statement) (float64, bool) {
	va, ok := x.vectors[statementKey(a)]
	if !ok {
		return 0, false
	}
	vb, ok := x.vectors[statementKey(b)]
	if !ok {
		return 0, false
	}
	return Cosine(va, vb), true
}

// Len returns the number of indexed statements.
func (x *EmbeddingIndex) Len() int { return len(x.vectors) }

func statementKey(s models.Statement) string {
	return fmt.Sprintf("%s#%d", s.DocumentID, s.Index)
}
