// Package engine runs one contradiction analysis over a set of statement
// streams: candidate pair generation, cached pairwise classification under
// a bounded worker pool, and reduction into a deterministic report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/pairs"
	"github.com/todmy/doc-checker/internal/report"
	"github.com/todmy/doc-checker/pkg/models"
)

// Prefilter reports the similarity of two statements, when known. Pairs
// below the configured similarity floor are skipped before classification.
type Prefilter interface {
	Similarity(a, b models.Statement) (float64, bool)
}

// Engine is the contradiction detection engine. The classifier is
// injected so runs can be made deterministic with a mock.
type Engine struct {
	classifier nli.Classifier
	prefilter  Prefilter
}

// Option configures the Engine.
type Option func(*Engine)

// WithPrefilter installs a similarity prefilter.
func WithPrefilter(p Prefilter) Option {
	return func(e *Engine) { e.prefilter = p }
}

// New creates an engine around classifier.
func New(classifier nli.Classifier, opts ...Option) *Engine {
	e := &Engine{classifier: classifier}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// slot is one candidate pair's outcome, keyed by its position in the
// generation stream so the final report order never depends on worker
// completion order.
type slot struct {
	pair    models.StatementPair
	result  models.ClassificationResult
	ok      bool
	skipped bool
}

// Run executes one analysis over docs. The returned report is immutable
// and owned by the caller. Cancelling ctx abandons the run; no partial
// report is returned.
func (e *Engine) Run(ctx context.Context, docs []models.DocumentStatements, cfg Config) (*models.ContradictionReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateInput(docs); err != nil {
		return nil, err
	}

	gen := pairs.NewGenerator(docs, cfg.Scope, cfg.MaxPairs)
	candidates := gen.Count()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := gen.Generate(runCtx)
	if err != nil {
		return nil, err
	}

	cache := nli.NewCache()
	// Fixed-size so worker goroutines can write their slot without the
	// backing array moving under them.
	slots := make([]slot, candidates)
	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrent))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
		fatal    error
	)

	seq := 0
	for pair := range stream {
		idx := seq
		seq++
		slots[idx].pair = pair

		if e.skip(pair, cfg) {
			slots[idx].skipped = true
			continue
		}

		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int, pair models.StatementPair) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := e.classifyCached(runCtx, cache, pair, cfg)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				slots[idx].result = result
				slots[idx].ok = true
			case errors.Is(err, nli.ErrModelUnavailable):
				if fatal == nil {
					fatal = err
					cancel()
				}
			case runCtx.Err() != nil:
				// The run is being torn down; the pair's error is not a
				// classification failure.
			default:
				failures++
			}
		}(idx, pair)
	}
	wg.Wait()

	completed := 0
	for _, s := range slots {
		if s.ok {
			completed++
		}
	}

	if fatal != nil {
		return nil, fmt.Errorf("run aborted after %d classified pairs: %w", completed, fatal)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attempted := completed + failures
	if attempted > 0 {
		rate := float64(failures) / float64(attempted)
		if rate > cfg.FailureRateCeiling {
			return nil, fmt.Errorf("classification failure rate %.2f exceeds ceiling %.2f after %d classified pairs: %w",
				rate, cfg.FailureRateCeiling, completed, nli.ErrModelUnavailable)
		}
	}

	classified := make([]report.Classified, 0, completed)
	for _, s := range slots {
		if !s.ok {
			continue
		}
		classified = append(classified, report.Classified{
			Pair:      s.pair,
			Scores:    s.result.Scores,
			Truncated: s.result.Truncated,
		})
	}

	return report.Build(docs, classified, report.Options{
		Model:          cfg.Model,
		Threshold:      cfg.Threshold,
		CandidatePairs: candidates,
		FailedPairs:    failures,
	}), nil
}

// skip reports whether the prefilter rules the pair out.
func (e *Engine) skip(pair models.StatementPair, cfg Config) bool {
	if e.prefilter == nil || cfg.MinSimilarity <= 0 {
		return false
	}
	sim, ok := e.prefilter.Similarity(pair.A, pair.B)
	return ok && sim < cfg.MinSimilarity
}

// classifyCached resolves one pair through the single-flight cache. The
// computed result is symmetric: with bidirectional scoring both directions
// are sent in one batch and merged by per-label maximum, so the canonical
// unordered key stays valid.
func (e *Engine) classifyCached(ctx context.Context, cache *nli.Cache, pair models.StatementPair, cfg Config) (models.ClassificationResult, error) {
	return cache.GetOrCompute(ctx, pair.Key(), func() (models.ClassificationResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()

		inputs := []nli.Input{{Premise: pair.A, Hypothesis: pair.B}}
		if cfg.Bidirectional {
			inputs = append(inputs, nli.Input{Premise: pair.B, Hypothesis: pair.A})
		}

		results, err := e.classifier.ClassifyPairs(callCtx, inputs)
		if err != nil {
			return models.ClassificationResult{}, err
		}
		if len(results) != len(inputs) {
			return models.ClassificationResult{}, fmt.Errorf("classifier returned %d results for %d inputs", len(results), len(inputs))
		}

		out := models.ClassificationResult{
			PairKey:   pair.Key(),
			Scores:    results[0].Scores,
			Truncated: results[0].Truncated,
		}
		if cfg.Bidirectional {
			out.Scores = out.Scores.Merge(results[1].Scores)
			out.Truncated = out.Truncated || results[1].Truncated
		}
		return out, nil
	})
}

func validateInput(docs []models.DocumentStatements) error {
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.DocumentID == "" {
			return fmt.Errorf("%w: empty document id", ErrInvalidConfig)
		}
		if seen[d.DocumentID] {
			return fmt.Errorf("%w: duplicate document id %q", ErrInvalidConfig, d.DocumentID)
		}
		seen[d.DocumentID] = true
		for i, text := range d.Statements {
			if text == "" {
				return fmt.Errorf("%w: empty statement %d in document %q", ErrInvalidConfig, i, d.DocumentID)
			}
		}
	}
	return nil
}
