package investigate

import (
	"context"

	"github.com/intelforge/deepsearch/internal/domain"
	"github.com/intelforge/deepsearch/internal/usecase/optimize"
)

// Optimizer plans keyword queries from natural-language intent.
type Optimizer interface {
	Plan(ctx context.Context, intent string, turns []domain.Turn, visited optimize.Visited) (domain.QueryPlan, error)
	FollowUps(ctx context.Context, intent, gap string, turns []domain.Turn, visited optimize.Visited) ([]string, error)
}

// Retriever fetches documents from the search source.
type Retriever interface {
	Fetch(ctx context.Context, query string, size int, include map[string]string) ([]domain.Document, error)
}

// DocumentStore is the persistence contract the orchestrator needs: an
// idempotent write plus canonical-record reads.
type DocumentStore interface {
	Put(ctx context.Context, doc domain.Document) (bool, error)
	Get(ctx context.Context, docID string) (domain.Document, error)
}

// Evaluator scores documents against a query.
type Evaluator interface {
	EvaluateAll(ctx context.Context, docs []domain.Document, query string) ([]domain.ScoredDocument, error)
}

// Synthesizer writes the final cited report.
type Synthesizer interface {
	Synthesize(ctx context.Context, intent string, retained []domain.ScoredDocument, discarded []domain.DiscardEntry, partial bool) (domain.Report, error)
}
