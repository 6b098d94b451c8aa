package pairs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/doc-checker/pkg/models"
)

func makeDoc(id string, n int) models.DocumentStatements {
	d := models.DocumentStatements{DocumentID: id}
	for i := 0; i < n; i++ {
		d.Statements = append(d.Statements, "statement")
	}
	return d
}

func collect(t *testing.T, g *Generator) []models.StatementPair {
	t.Helper()
	ch, err := g.Generate(context.Background())
	require.NoError(t, err)
	var out []models.StatementPair
	for p := range ch {
		out = append(out, p)
	}
	return out
}

func TestGenerator_InternalCount(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 10} {
		g := NewGenerator([]models.DocumentStatements{makeDoc("a", n)}, ScopeInternal, 0)
		assert.Equal(t, n*(n-1)/2, g.Count(), "n=%d", n)
		assert.Len(t, collect(t, g), n*(n-1)/2, "n=%d", n)
	}
}

func TestGenerator_CrossCount(t *testing.T) {
	docs := []models.DocumentStatements{makeDoc("a", 3), makeDoc("b", 4)}
	g := NewGenerator(docs, ScopeCross, 0)
	generated := collect(t, g)
	assert.Equal(t, 12, g.Count())
	assert.Len(t, generated, 12)
	for _, p := range generated {
		assert.Equal(t, models.ScopeCross, p.Scope)
	}
}

func TestGenerator_BothCombinesScopes(t *testing.T) {
	docs := []models.DocumentStatements{makeDoc("a", 3), makeDoc("b", 2)}
	g := NewGenerator(docs, ScopeBoth, 0)
	generated := collect(t, g)
	// 3 internal in a, 1 internal in b, 6 cross.
	assert.Len(t, generated, 10)

	internal, cross := 0, 0
	for _, p := range generated {
		if p.Scope == models.ScopeInternal {
			internal++
		} else {
			cross++
		}
	}
	assert.Equal(t, 4, internal)
	assert.Equal(t, 6, cross)
}

func TestGenerator_NoDuplicatesOrSelfPairs(t *testing.T) {
	docs := []models.DocumentStatements{makeDoc("a", 6), makeDoc("b", 5), makeDoc("c", 4)}
	g := NewGenerator(docs, ScopeBoth, 0)
	seen := make(map[string]bool)
	for _, p := range collect(t, g) {
		require.False(t, p.A == p.B, "self pair %s", p.Key())
		require.False(t, seen[p.Key()], "duplicate pair %s", p.Key())
		seen[p.Key()] = true
	}
	assert.Len(t, seen, g.Count())
}

func TestGenerator_EmptyDocumentContributesNothing(t *testing.T) {
	docs := []models.DocumentStatements{makeDoc("a", 0), makeDoc("b", 3)}
	g := NewGenerator(docs, ScopeBoth, 0)
	assert.Equal(t, 3, g.Count())
	assert.Len(t, collect(t, g), 3)
}

func TestGenerator_PairLimit(t *testing.T) {
	docs := []models.DocumentStatements{makeDoc("a", 10)}
	g := NewGenerator(docs, ScopeInternal, 10)
	_, err := g.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceLimitExceeded))

	// At the limit generation proceeds.
	g = NewGenerator(docs, ScopeInternal, 45)
	assert.Len(t, collect(t, g), 45)
}

func TestGenerator_DeterministicOrder(t *testing.T) {
	docs := []models.DocumentStatements{makeDoc("b", 4), makeDoc("a", 3)}
	g1 := NewGenerator(docs, ScopeBoth, 0)
	g2 := NewGenerator(docs, ScopeBoth, 0)
	first := collect(t, g1)
	second := collect(t, g2)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}
}

func TestGenerator_UnknownScope(t *testing.T) {
	g := NewGenerator([]models.DocumentStatements{makeDoc("a", 2)}, Scope("sideways"), 0)
	_, err := g.Generate(context.Background())
	assert.Error(t, err)
}

func TestGenerator_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGenerator([]models.DocumentStatements{makeDoc("a", 200)}, ScopeInternal, 0)
	ch, err := g.Generate(ctx)
	require.NoError(t, err)

	<-ch
	cancel()
	// The channel must close shortly after cancellation.
	for range ch {
	}
}
