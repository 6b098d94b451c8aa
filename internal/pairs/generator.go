package pairs

import (
	"context"
	"errors"
	"fmt"

	"github.com/todmy/doc-checker/pkg/models"
)

// Scope selects which pair categories the generator emits.
type Scope string

const (
	ScopeInternal Scope = "internal"
	ScopeCross    Scope = "cross"
	ScopeBoth     Scope = "both"
)

// Valid reports whether s is a recognized scope value.
func (s Scope) Valid() bool {
	switch s {
	case ScopeInternal, ScopeCross, ScopeBoth:
		return true
	}
	return false
}

// ErrResourceLimitExceeded is returned when the candidate pair count
// exceeds the configured limit. No pairs are emitted in that case; callers
// must narrow scope or split input.
var ErrResourceLimitExceeded = errors.New("candidate pair count exceeds limit")

// InternalPairCount returns the number of unordered pairs within a
// document of n statements.
func InternalPairCount(n int) int {
	return n * (n - 1) / 2
}

// Generator enumerates candidate statement pairs over a set of documents.
// Enumeration order is deterministic: documents in input order, statements
// in ascending index order, internal pairs before cross pairs. A generator
// is not restartable mid-stream; call Generate again to re-enumerate.
type Generator struct {
	docs     []models.DocumentStatements
	scope    Scope
	maxPairs int
}

// NewGenerator creates a generator over docs. maxPairs caps the candidate
// count; a non-positive value means no cap.
func NewGenerator(docs []models.DocumentStatements, scope Scope, maxPairs int) *Generator {
	return &Generator{docs: docs, scope: scope, maxPairs: maxPairs}
}

// Count returns the total number of pairs the generator would emit.
func (g *Generator) Count() int {
	total := 0
	if g.scope == ScopeInternal || g.scope == ScopeBoth {
		for _, d := range g.docs {
			total += InternalPairCount(len(d.Statements))
		}
	}
	if g.scope == ScopeCross || g.scope == ScopeBoth {
		for i := 0; i < len(g.docs); i++ {
			for j := i + 1; j < len(g.docs); j++ {
				total += len(g.docs[i].Statements) * len(g.docs[j].Statements)
			}
		}
	}
	return total
}

// Generate returns a lazily filled channel of statement pairs. The
// candidate count is checked against the pair limit before any pair is
// emitted. The channel is closed once all pairs are emitted or ctx is
// cancelled.
func (g *Generator) Generate(ctx context.Context) (<-chan models.StatementPair, error) {
	if !g.scope.Valid() {
		return nil, fmt.Errorf("unknown scope %q", g.scope)
	}
	if count := g.Count(); g.maxPairs > 0 && count > g.maxPairs {
		return nil, fmt.Errorf("%w: %d candidates, limit %d", ErrResourceLimitExceeded, count, g.maxPairs)
	}

	out := make(chan models.StatementPair)
	go func() {
		defer close(out)

		emit := func(a, b models.Statement) bool {
			select {
			case out <- models.NewStatementPair(a, b):
				return true
			case <-ctx.Done():
				return false
			}
		}

		if g.scope == ScopeInternal || g.scope == ScopeBoth {
			for _, d := range g.docs {
				for i := 0; i < len(d.Statements); i++ {
					for j := i + 1; j < len(d.Statements); j++ {
						if !emit(g.statement(d, i), g.statement(d, j)) {
							return
						}
					}
				}
			}
		}
		if g.scope == ScopeCross || g.scope == ScopeBoth {
			for di := 0; di < len(g.docs); di++ {
				for dj := di + 1; dj < len(g.docs); dj++ {
					d1, d2 := g.docs[di], g.docs[dj]
					for i := 0; i < len(d1.Statements); i++ {
						for j := 0; j < len(d2.Statements); j++ {
							if !emit(g.statement(d1, i), g.statement(d2, j)) {
								return
							}
						}
					}
				}
			}
		}
	}()

	return out, nil
}

func (g *Generator) statement(d models.DocumentStatements, i int) models.Statement {
	return models.Statement{DocumentID: d.DocumentID, Index: i, Text: d.Statements[i]}
}
