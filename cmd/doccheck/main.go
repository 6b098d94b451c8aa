package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/todmy/doc-checker/internal/engine"
	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/pairs"
	"github.com/todmy/doc-checker/pkg/models"
)

func main() {
	_ = godotenv.Load()

	var (
		input         = flag.String("input", "", "path to a JSON statement-stream file (required)")
		nliURL        = flag.String("nli-url", "http://localhost:8081", "relation model endpoint")
		model         = flag.String("model", nli.DefaultModel, "relation model identifier")
		scope         = flag.String("scope", "both", "pair scope: internal, cross or both")
		threshold     = flag.Float64("threshold", 0.7, "minimum contradiction score to report")
		maxPairs      = flag.Int("max-pairs", 10000, "candidate pair ceiling")
		workers       = flag.Int("workers", 4, "concurrent classification calls")
		timeout       = flag.Duration("timeout", 30*time.Second, "per-call classification timeout")
		minSimilarity = flag.Float64("min-similarity", 0, "similarity prefilter floor, 0 disables")
		pretty        = flag.Bool("pretty", false, "indent the JSON report")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	docs, err := readDocuments(*input)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *input, err)
	}

	cfg := engine.DefaultConfig()
	cfg.Scope = pairs.Scope(*scope)
	cfg.Threshold = *threshold
	cfg.MaxPairs = *maxPairs
	cfg.Model = *model
	cfg.MaxConcurrent = *workers
	cfg.CallTimeout = *timeout
	cfg.MinSimilarity = *minSimilarity
	cfg.BatchSize = nli.ProfileForModel(*model).BatchSize

	classifier := nli.NewClient(*nliURL,
		nli.WithModel(*model),
		nli.WithAPIKey(os.Getenv("NLI_API_KEY")),
		nli.WithBatchSize(cfg.BatchSize),
		nli.WithMaxConcurrent(cfg.MaxConcurrent),
		nli.WithTimeout(cfg.CallTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := engine.New(classifier).Run(ctx, docs, cfg)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	log.Printf("Analyzed %d candidate pairs: %d findings (%d failed, %d warnings)",
		report.Summary.CandidatePairs, report.Summary.Total,
		report.Summary.FailedPairs, report.Summary.Warnings)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

// readDocuments parses a statement-stream file: a JSON array of
// {"document_id": ..., "statements": [...]} objects.
func readDocuments(path string) ([]models.DocumentStatements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []models.DocumentStatements
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("invalid statement stream: %w", err)
	}
	return docs, nil
}
