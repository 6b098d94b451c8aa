package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/pairs"
	"github.com/todmy/doc-checker/pkg/models"
)

// mockClassifier scores pairs with a caller-supplied function, recording
// every call.
type mockClassifier struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	score func(premise, hypothesis models.Statement) (nli.Result, error)
}

func (m *mockClassifier) ClassifyPairs(ctx context.Context, inputs []nli.Input) ([]nli.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]nli.Result, len(inputs))
	for i, in := range inputs {
		r, err := m.score(in.Premise, in.Hypothesis)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (m *mockClassifier) ModelName() string { return "mock-mnli" }

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func neutralScore() nli.Result {
	return nli.Result{Scores: models.RelationScores{Neutral: 0.9, Entailment: 0.05, Contradiction: 0.05}}
}

func contradictionScore(c float64) nli.Result {
	return nli.Result{Scores: models.RelationScores{Contradiction: c, Neutral: 1 - c}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Threshold = 0.5
	cfg.CallTimeout = time.Second
	return cfg
}

// Scenario A: two single-statement documents with opposing statements,
// scope=cross.
func TestRun_CrossDocumentContradiction(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "q3-draft", Statements: []string{"Revenue increased 10% in Q3."}},
		{DocumentID: "q3-final", Statements: []string{"Revenue decreased 10% in Q3."}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		if p.Text != h.Text {
			return contradictionScore(0.92), nil
		}
		return neutralScore(), nil
	}}

	cfg := testConfig()
	cfg.Scope = pairs.ScopeCross
	rep, err := New(clf).Run(context.Background(), docs, cfg)
	require.NoError(t, err)

	require.Len(t, rep.Records, 1)
	assert.Equal(t, models.ScopeCross, rep.Records[0].Scope)
	assert.GreaterOrEqual(t, rep.Records[0].ContradictionScore, 0.5)
	assert.Equal(t, 1, rep.Summary.Cross)
	assert.Equal(t, 0, rep.Summary.Internal)
}

// Scenario B: identical statements do not contradict; only the mocked
// (0,1) pair is reported.
func TestRun_InternalPairFromMock(t *testing.T) {
	docs := []models.DocumentStatements{{
		DocumentID: "policy",
		Statements: []string{
			"The office opens at 9am.",
			"Staff arrive at noon.",
			"The office opens at 9am.",
		},
	}}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		lo, hi := min(p.Index, h.Index), max(p.Index, h.Index)
		if lo == 0 && hi == 1 {
			return contradictionScore(0.9), nil
		}
		return contradictionScore(0.0), nil
	}}

	cfg := testConfig()
	cfg.Scope = pairs.ScopeInternal
	rep, err := New(clf).Run(context.Background(), docs, cfg)
	require.NoError(t, err)

	require.Len(t, rep.Records, 1)
	assert.Equal(t, 0, rep.Records[0].Statement1.Index)
	assert.Equal(t, 1, rep.Records[0].Statement2.Index)
	assert.Equal(t, models.ScopeInternal, rep.Records[0].Scope)
}

// Scenario C: an empty document contributes no pairs and no error.
func TestRun_EmptyDocument(t *testing.T) {
	docs := []models.DocumentStatements{{DocumentID: "empty"}}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return neutralScore(), nil
	}}

	rep, err := New(clf).Run(context.Background(), docs, testConfig())
	require.NoError(t, err)
	assert.Empty(t, rep.Records)
	assert.Equal(t, 0, rep.Summary.CandidatePairs)
	assert.Equal(t, 0, clf.callCount())
}

// Scenario D: max_pairs below the candidate count fails before any
// classification call.
func TestRun_ResourceLimitExceeded(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"s0", "s1", "s2", "s3", "s4"}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return neutralScore(), nil
	}}

	cfg := testConfig()
	cfg.Scope = pairs.ScopeInternal
	cfg.MaxPairs = 5 // 10 candidates
	_, err := New(clf).Run(context.Background(), docs, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, pairs.ErrResourceLimitExceeded)
	assert.Equal(t, 0, clf.callCount())
}

func TestRun_DeterministicAcrossParallelism(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1", "a2", "a3", "a4", "a5"}},
		{DocumentID: "b", Statements: []string{"b0", "b1", "b2", "b3"}},
	}
	// Deterministic pseudo-scores from the statement texts.
	score := func(p, h models.Statement) (nli.Result, error) {
		c := float64((len(p.Text)*31+len(h.Text)*17+int(p.Text[0])+int(h.Text[0]))%100) / 100
		return contradictionScore(c), nil
	}

	var reports []*models.ContradictionReport
	for _, workers := range []int{1, 3, 8} {
		clf := &mockClassifier{score: score, delay: time.Millisecond}
		cfg := testConfig()
		cfg.Threshold = 0.3
		cfg.MaxConcurrent = workers
		rep, err := New(clf).Run(context.Background(), docs, cfg)
		require.NoError(t, err)
		reports = append(reports, rep)
	}

	for i := 1; i < len(reports); i++ {
		require.Equal(t, len(reports[0].Records), len(reports[i].Records))
		for j := range reports[0].Records {
			assert.Equal(t, reports[0].Records[j], reports[i].Records[j])
		}
		assert.Equal(t, reports[0].Summary, reports[i].Summary)
	}
}

func TestRun_SilentOnGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1"}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return contradictionScore(0.9), nil
	}}
	_, err := New(clf).Run(context.Background(), docs, testConfig())
	require.NoError(t, err)

	// Reporting on a run belongs to the caller, not the library.
	assert.Empty(t, buf.String())
}

func TestRun_ScoresWithinBounds(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1", "a2"}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return contradictionScore(0.77), nil
	}}

	cfg := testConfig()
	cfg.Threshold = 0
	rep, err := New(clf).Run(context.Background(), docs, cfg)
	require.NoError(t, err)
	for _, r := range rep.Records {
		assert.GreaterOrEqual(t, r.ContradictionScore, 0.0)
		assert.LessOrEqual(t, r.ContradictionScore, 1.0)
	}
}

func TestRun_BidirectionalTakesMax(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"first", "second"}},
	}
	// Asymmetric model: only one direction sees the contradiction.
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		if p.Text == "first" {
			return contradictionScore(0.9), nil
		}
		return contradictionScore(0.1), nil
	}}

	cfg := testConfig()
	cfg.Scope = pairs.ScopeInternal
	rep, err := New(clf).Run(context.Background(), docs, cfg)
	require.NoError(t, err)
	require.Len(t, rep.Records, 1)
	assert.InDelta(t, 0.9, rep.Records[0].ContradictionScore, 1e-9)

	cfg.Bidirectional = false
	clf2 := &mockClassifier{score: clf.score}
	rep2, err := New(clf2).Run(context.Background(), docs, cfg)
	require.NoError(t, err)
	require.Len(t, rep2.Records, 1)
	assert.Equal(t, 1, clf2.callCount())
}

func TestRun_ModelUnavailableAborts(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1", "a2", "a3"}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return nli.Result{}, fmt.Errorf("%w: connection refused", nli.ErrModelUnavailable)
	}}

	_, err := New(clf).Run(context.Background(), docs, testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, nli.ErrModelUnavailable)
}

func TestRun_FailureRateCeiling(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1", "a2", "a3", "a4"}},
	}
	flaky := errors.New("inference hiccup")
	var n int
	var mu sync.Mutex
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		mu.Lock()
		n++
		fail := n%2 == 0
		mu.Unlock()
		if fail {
			return nli.Result{}, flaky
		}
		return neutralScore(), nil
	}}

	cfg := testConfig()
	cfg.Scope = pairs.ScopeInternal
	cfg.MaxConcurrent = 1
	cfg.Bidirectional = false
	cfg.FailureRateCeiling = 0.1
	_, err := New(clf).Run(context.Background(), docs, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, nli.ErrModelUnavailable)

	// A generous ceiling lets the same run finish without the failed pairs.
	clf2 := &mockClassifier{score: clf.score}
	cfg.FailureRateCeiling = 0.9
	rep, err := New(clf2).Run(context.Background(), docs, cfg)
	require.NoError(t, err)
	assert.Greater(t, rep.Summary.FailedPairs, 0)
	assert.Less(t, rep.Summary.ClassifiedPairs, rep.Summary.CandidatePairs)
}

func TestRun_PerCallTimeoutIsPairFailure(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1"}},
	}
	clf := &mockClassifier{
		delay: 200 * time.Millisecond,
		score: func(p, h models.Statement) (nli.Result, error) { return neutralScore(), nil },
	}

	cfg := testConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	cfg.FailureRateCeiling = 1
	rep, err := New(clf).Run(context.Background(), docs, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.FailedPairs)
	assert.Equal(t, 0, rep.Summary.ClassifiedPairs)
}

func TestRun_CancellationReturnsNoReport(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}},
	}
	clf := &mockClassifier{
		delay: 50 * time.Millisecond,
		score: func(p, h models.Statement) (nli.Result, error) { return neutralScore(), nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	rep, err := New(clf).Run(ctx, docs, testConfig())
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InvalidConfigRejectedSynchronously(t *testing.T) {
	docs := []models.DocumentStatements{{DocumentID: "a", Statements: []string{"a0", "a1"}}}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return neutralScore(), nil
	}}

	for name, mutate := range map[string]func(*Config){
		"threshold above one":  func(c *Config) { c.Threshold = 1.5 },
		"negative threshold":   func(c *Config) { c.Threshold = -0.1 },
		"zero batch size":      func(c *Config) { c.BatchSize = 0 },
		"zero max pairs":       func(c *Config) { c.MaxPairs = 0 },
		"unknown scope":        func(c *Config) { c.Scope = "everything" },
		"zero workers":         func(c *Config) { c.MaxConcurrent = 0 },
		"bad failure ceiling":  func(c *Config) { c.FailureRateCeiling = 2 },
		"bad similarity floor": func(c *Config) { c.MinSimilarity = -1 },
	} {
		cfg := testConfig()
		mutate(&cfg)
		_, err := New(clf).Run(context.Background(), docs, cfg)
		require.ErrorIs(t, err, ErrInvalidConfig, name)
		assert.Equal(t, 0, clf.callCount(), name)
	}
}

func TestRun_RejectsEmptyStatementText(t *testing.T) {
	docs := []models.DocumentStatements{{DocumentID: "a", Statements: []string{"ok", ""}}}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return neutralScore(), nil
	}}
	_, err := New(clf).Run(context.Background(), docs, testConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRun_TruncationWarningSurfaces(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1"}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		r := contradictionScore(0.9)
		r.Truncated = true
		return r, nil
	}}

	rep, err := New(clf).Run(context.Background(), docs, testConfig())
	require.NoError(t, err)
	require.Len(t, rep.Records, 1)
	assert.Contains(t, rep.Records[0].Warnings, models.WarningTruncatedInput)
	assert.Equal(t, 1, rep.Summary.Warnings)
}

type mapPrefilter map[string]float64

func (m mapPrefilter) Similarity(a, b models.Statement) (float64, bool) {
	sim, ok := m[models.NewStatementPair(a, b).Key()]
	return sim, ok
}

func TestRun_PrefilterSkipsDissimilarPairs(t *testing.T) {
	docs := []models.DocumentStatements{
		{DocumentID: "a", Statements: []string{"a0", "a1", "a2"}},
	}
	clf := &mockClassifier{score: func(p, h models.Statement) (nli.Result, error) {
		return contradictionScore(0.9), nil
	}}
	pre := mapPrefilter{
		"a#0|a#1": 0.9,
		"a#0|a#2": 0.1,
		"a#1|a#2": 0.1,
	}

	cfg := testConfig()
	cfg.Scope = pairs.ScopeInternal
	cfg.MinSimilarity = 0.5
	rep, err := New(clf, WithPrefilter(pre)).Run(context.Background(), docs, cfg)
	require.NoError(t, err)

	require.Len(t, rep.Records, 1)
	assert.Equal(t, "a#0|a#1", rep.Records[0].PairKey())
	assert.Equal(t, 3, rep.Summary.CandidatePairs)
	assert.Equal(t, 1, rep.Summary.ClassifiedPairs)
	assert.Equal(t, 0, rep.Summary.FailedPairs)
}
