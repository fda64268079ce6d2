package evaluate

import (
	"context"

	"github.com/intelforge/deepsearch/internal/domain"
)

// Completer is the LLM inference contract for document scoring.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EvaluationWriter persists evaluation records.
type EvaluationWriter interface {
	PutEvaluation(ctx context.Context, ev domain.Evaluation) (string, error)
}
