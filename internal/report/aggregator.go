// Package report turns classified statement pairs into the final
// contradiction report: threshold filtering, pair-key deduplication,
// deterministic ranking, and summary statistics.
package report

import (
	"sort"

	"github.com/todmy/doc-checker/pkg/models"
)

// Classified is one classifier verdict in generation order.
type Classified struct {
	Pair      models.StatementPair
	Scores    models.RelationScores
	Truncated bool
}

// Options carries run metadata recorded in the report.
type Options struct {
	Model          string
	Threshold      float64
	CandidatePairs int
	FailedPairs    int
}

// Build reduces the classified-pair stream into a report. The input slice
// must be in pair-generation order; Build keeps the first occurrence of a
// duplicated pair key and ranks records by descending contradiction score
// with the canonical pair ordering as tie-break, so identical inputs
// always produce identical reports.
func Build(docs []models.DocumentStatements, classified []Classified, opts Options) *models.ContradictionReport {
	var records []models.ContradictionRecord
	seen := make(map[string]bool)
	warnings := 0

	for _, c := range classified {
		if c.Truncated {
			warnings++
		}
		if c.Scores.Contradiction < opts.Threshold {
			continue
		}
		key := c.Pair.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		rec := models.ContradictionRecord{
			Statement1:         c.Pair.A,
			Statement2:         c.Pair.B,
			Scope:              c.Pair.Scope,
			ContradictionScore: c.Scores.Contradiction,
			EntailmentScore:    c.Scores.Entailment,
			NeutralScore:       c.Scores.Neutral,
			Confidence:         c.Scores.Confidence(),
			Severity:           models.SeverityForScore(c.Scores.Contradiction),
		}
		if c.Truncated {
			rec.Warnings = append(rec.Warnings, models.WarningTruncatedInput)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].ContradictionScore != records[j].ContradictionScore {
			return records[i].ContradictionScore > records[j].ContradictionScore
		}
		return lessCanonical(records[i], records[j])
	})

	return &models.ContradictionReport{
		Model:     opts.Model,
		Threshold: opts.Threshold,
		Records:   records,
		Documents: documentConsistency(docs, classified, records),
		Summary:   summarize(docs, records, classified, warnings, opts),
	}
}

// lessCanonical orders records by ascending
// (document_id_a, index_a, document_id_b, index_b) of the canonical pair.
func lessCanonical(a, b models.ContradictionRecord) bool {
	if a.Statement1 != b.Statement1 {
		return a.Statement1.Before(b.Statement1)
	}
	return a.Statement2.Before(b.Statement2)
}

func summarize(docs []models.DocumentStatements, records []models.ContradictionRecord, classified []Classified, warnings int, opts Options) models.ReportSummary {
	s := models.ReportSummary{
		Total:           len(records),
		Warnings:        warnings,
		CandidatePairs:  opts.CandidatePairs,
		ClassifiedPairs: len(classified),
		FailedPairs:     opts.FailedPairs,
	}
	for _, r := range records {
		if r.Scope == models.ScopeInternal {
			s.Internal++
		} else {
			s.Cross++
		}
	}

	statements := 0
	for _, d := range docs {
		statements += len(d.Statements)
	}
	// Findings can outnumber statements (quadratic pairs, low threshold);
	// the score still bottoms out at 0.
	s.OverallConsistency = max(1-float64(len(records))/float64(max(statements, 1)), 0)
	return s
}

func documentConsistency(docs []models.DocumentStatements, classified []Classified, records []models.ContradictionRecord) []models.DocumentConsistency {
	checked := make(map[string]int)
	for _, c := range classified {
		if c.Pair.Scope == models.ScopeInternal {
			checked[c.Pair.A.DocumentID]++
		}
	}
	found := make(map[string]int)
	for _, r := range records {
		if r.Scope == models.ScopeInternal {
			found[r.Statement1.DocumentID]++
		}
	}

	out := make([]models.DocumentConsistency, len(docs))
	for i, d := range docs {
		dc := models.DocumentConsistency{
			DocumentID:     d.DocumentID,
			Statements:     len(d.Statements),
			PairsChecked:   checked[d.DocumentID],
			Contradictions: found[d.DocumentID],
		}
		if dc.PairsChecked > 0 {
			dc.ContradictionRate = float64(dc.Contradictions) / float64(dc.PairsChecked)
		}
		dc.ConsistencyScore = 1 - dc.ContradictionRate
		out[i] = dc
	}
	return out
}
