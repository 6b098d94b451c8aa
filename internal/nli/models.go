package nli

import (
	"context"
	"strings"

	"github.com/todmy/doc-checker/pkg/models"
)

// Supported NLI models. Any other identifier is accepted and served with
// the default profile.
const (
	ModelRobertaLargeMNLI = "roberta-large-mnli"
	ModelBartLargeMNLI    = "facebook/bart-large-mnli"
	ModelDebertaLargeMNLI = "microsoft/deberta-large-mnli"

	DefaultModel = ModelRobertaLargeMNLI
)

// ModelProfile holds per-model inference constraints.
type ModelProfile struct {
	// MaxInputChars is the deterministic truncation point for a single
	// statement. Statements longer than this are cut to the leading
	// MaxInputChars runes before classification.
	MaxInputChars int

	// BatchSize is the preferred number of inputs per inference request.
	BatchSize int
}

// ProfileForModel returns the inference profile for a model identifier.
func ProfileForModel(model string) ModelProfile {
	switch model {
	case ModelBartLargeMNLI:
		return ModelProfile{MaxInputChars: 2000, BatchSize: 16}
	case ModelRobertaLargeMNLI, ModelDebertaLargeMNLI:
		return ModelProfile{MaxInputChars: 2000, BatchSize: 8}
	default:
		return ModelProfile{MaxInputChars: 2000, BatchSize: 8}
	}
}

// Input is one directed premise/hypothesis pair to score. The full
// statements are carried so implementations can attribute results; only
// the text participates in inference.
type Input struct {
	Premise    models.Statement
	Hypothesis models.Statement
}

// Result is the scored outcome for one input. Truncated is set when either
// statement was cut to the model's maximum input length.
type Result struct {
	Scores    models.RelationScores
	Truncated bool
}

// Classifier scores premise/hypothesis pairs. Implementations may batch
// inputs into one underlying inference call; batching must not change
// per-input results. Results are returned in input order.
type Classifier interface {
	ClassifyPairs(ctx context.Context, inputs []Input) ([]Result, error)
	ModelName() string
}

// normalizeLabel maps a model output label onto one of the three NLI
// labels. MNLI heads emit either spelled-out labels in varying case or
// positional LABEL_n names in the MNLI order (contradiction, entailment,
// neutral).
func normalizeLabel(label string) string {
	switch strings.ToLower(label) {
	case "contradiction", "label_0":
		return "contradiction"
	case "entailment", "label_1":
		return "entailment"
	case "neutral", "label_2":
		return "neutral"
	default:
		return ""
	}
}
