// Package evaluate scores documents against queries for relevance and
// insight using a rubric-constrained LLM prompt.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/intelforge/deepsearch/internal/domain"
	"github.com/intelforge/deepsearch/internal/metrics"
)

const (
	defaultConcurrency  = 4
	defaultContentLimit = 8000 // characters of payload handed to the rubric
)

// Service is the document evaluator.
type Service struct {
	llm          Completer
	store        EvaluationWriter
	concurrency  int
	contentLimit int
	logger       *zap.Logger
}

// New creates an evaluator.
func New(llm Completer, store EvaluationWriter, logger *zap.Logger) *Service {
	return &Service{
		llm:          llm,
		store:        store,
		concurrency:  defaultConcurrency,
		contentLimit: defaultContentLimit,
		logger:       logger,
	}
}

// WithConcurrency bounds how many documents are scored in parallel.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithContentLimit bounds how many payload characters reach the prompt.
func (s *Service) WithContentLimit(n int) *Service {
	if n > 0 {
		s.contentLimit = n
	}
	return s
}

type scoreResponse struct {
	RelevanceScore any    `json:"relevance_score"`
	InsightScore   any    `json:"insight_score"`
	Rationale      string `json:"rationale"`
}

// Evaluate scores one document against a query and persists the record.
// Scoring failures degrade to a sentinel evaluation (both scores zero, the
// rationale explains why) rather than an error; only cancellation and
// persistence failures propagate. The document must already be persisted.
func (s *Service) Evaluate(ctx context.Context, doc domain.Document, query string) (domain.Evaluation, error) {
	ev := s.score(ctx, doc, query)

	// A cancelled evaluation writes nothing at all.
	if err := ctx.Err(); err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate %s: %w", doc.DocID, err)
	}

	id, err := s.store.PutEvaluation(ctx, ev)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("persist evaluation for %s: %w", doc.DocID, err)
	}
	ev.EvaluationID = id

	if ev.IsSentinel() {
		metrics.EvaluationsTotal.WithLabelValues("sentinel").Inc()
	} else {
		metrics.EvaluationsTotal.WithLabelValues("scored").Inc()
	}
	return ev, nil
}

// EvaluateAll scores the documents concurrently, bounded by the configured
// limit. Document order in the result matches the input. Independent
// documents have no ordering requirement between each other.
func (s *Service) EvaluateAll(
	ctx context.Context, docs []domain.Document, query string,
) ([]domain.ScoredDocument, error) {
	out := make([]domain.ScoredDocument, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			ev, err := s.Evaluate(gctx, doc, query)
			if err != nil {
				return err
			}
			out[i] = domain.ScoredDocument{Document: doc, Evaluation: ev}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// score runs the rubric prompt and parses the result, degrading to a
// sentinel on any failure.
func (s *Service) score(ctx context.Context, doc domain.Document, query string) domain.Evaluation {
	raw, err := s.llm.Complete(ctx, rubricSystemPrompt, s.buildRubricUserPrompt(doc, query))
	if err != nil {
		if ctx.Err() != nil {
			return domain.Evaluation{}
		}
		s.logger.Warn("Evaluation LLM failed",
			zap.String("doc_id", doc.DocID), zap.Error(err))
		return domain.SentinelEvaluation(doc.DocID, query, fmt.Sprintf("inference failed: %v", err))
	}

	obj, ok := domain.ExtractJSONObject(raw)
	if !ok {
		return domain.SentinelEvaluation(doc.DocID, query, "no JSON object in model response")
	}

	var parsed scoreResponse
	if err := json.Unmarshal(obj, &parsed); err != nil {
		return domain.SentinelEvaluation(doc.DocID, query, fmt.Sprintf("malformed scores: %v", err))
	}

	relevance, okR := coerceScore(parsed.RelevanceScore)
	insight, okI := coerceScore(parsed.InsightScore)
	if !okR || !okI {
		return domain.SentinelEvaluation(doc.DocID, query, "scores missing or non-numeric")
	}

	rationale := strings.TrimSpace(parsed.Rationale)
	if rationale == "" {
		rationale = "no rationale provided"
	}

	return domain.Evaluation{
		DocID:          doc.DocID,
		Query:          query,
		RelevanceScore: domain.ClampScore(relevance),
		InsightScore:   domain.ClampScore(insight),
		EvaluationText: rationale,
	}
}

// coerceScore accepts the numeric shapes models actually produce: JSON
// numbers, quoted numbers, and nothing else.
func coerceScore(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}
