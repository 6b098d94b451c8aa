package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/todmy/doc-checker/pkg/models"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCosine_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestEmbeddingIndex_Similarity(t *testing.T) {
	idx := NewEmbeddingIndex()
	a := models.Statement{DocumentID: "d", Index: 0}
	b := models.Statement{DocumentID: "d", Index: 1}
	idx.Add(a, []float32{1, 0})
	idx.Add(b, []float32{1, 0})

	sim, ok := idx.Similarity(a, b)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-9)
	assert.Equal(t, 2, idx.Len())
}

func TestEmbeddingIndex_MissingEmbedding(t *testing.T) {
	idx := NewEmbeddingIndex()
	a := models.Statement{DocumentID: "d", Index: 0}
	idx.Add(a, []float32{1, 0})

	_, ok := idx.Similarity(a, models.Statement{DocumentID: "d", Index: 9})
	assert.False(t, ok)
}
