package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/pairs"
)

// ErrInvalidConfig is wrapped by all configuration validation failures.
var ErrInvalidConfig = errors.New("invalid analysis config")

// Config holds the options recognized for one analysis run. A zero value
// is not usable; start from DefaultConfig.
type Config struct {
	// Scope selects which pair categories to generate.
	Scope pairs.Scope

	// Threshold is the minimum contradiction score to report, in [0,1].
	Threshold float64

	// MaxPairs caps the candidate pair count before generation fails.
	MaxPairs int

	// BatchSize is a classifier batching hint with no semantic effect.
	BatchSize int

	// Model is the identifier of the relation model to score with.
	Model string

	// MaxConcurrent bounds the classification worker pool.
	MaxConcurrent int

	// CallTimeout bounds a single classification call. A timeout on one
	// pair is a per-pair failure, not a run failure.
	CallTimeout time.Duration

	// FailureRateCeiling is the classification failure rate above which
	// the run aborts instead of silently dropping comparisons.
	FailureRateCeiling float64

	// Bidirectional scores both directions of each pair and keeps the
	// per-label maximum. MNLI models are not symmetric, so this is on by
	// default.
	Bidirectional bool

	// MinSimilarity, when positive and a prefilter is installed, skips
	// classification of pairs whose embedding cosine similarity falls
	// below it.
	MinSimilarity float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Scope:              pairs.ScopeBoth,
		Threshold:          0.7,
		MaxPairs:           10000,
		BatchSize:          8,
		Model:              nli.DefaultModel,
		MaxConcurrent:      4,
		CallTimeout:        30 * time.Second,
		FailureRateCeiling: 0.2,
		Bidirectional:      true,
	}
}

// Validate rejects out-of-range options. It is called synchronously at
// run start, before any work is scheduled.
func (c Config) Validate() error {
	if !c.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidConfig, c.Scope)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidConfig, c.Threshold)
	}
	if c.MaxPairs <= 0 {
		return fmt.Errorf("%w: max_pairs must be positive, got %d", ErrInvalidConfig, c.MaxPairs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max_concurrent must be positive, got %d", ErrInvalidConfig, c.MaxConcurrent)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: call_timeout must be positive, got %v", ErrInvalidConfig, c.CallTimeout)
	}
	if c.FailureRateCeiling < 0 || c.FailureRateCeiling > 1 {
		return fmt.Errorf("%w: failure_rate_ceiling %v outside [0,1]", ErrInvalidConfig, c.FailureRateCeiling)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity %v outside [0,1]", ErrInvalidConfig, c.MinSimilarity)
	}
	return nil
}
