// Package investigate orchestrates the deep-search pipeline: escalation,
// query planning, rate-limited retrieval, idempotent persistence, concurrent
// evaluation, the bounded follow-up loop, and final synthesis.
package investigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
	"github.com/intelforge/deepsearch/internal/metrics"
)

// Policy holds the loop bounds of one investigation. The budget counts
// retrieval calls; depth counts follow-up rounds past the initial one.
type Policy struct {
	MaxDepth         int
	CallBudget       int
	InsightThreshold float64
	TaskTimeout      time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxDepth <= 0 {
		p.MaxDepth = 2
	}
	if p.CallBudget <= 0 {
		p.CallBudget = 12
	}
	if p.InsightThreshold <= 0 {
		p.InsightThreshold = 6.0
	}
	if p.TaskTimeout <= 0 {
		p.TaskTimeout = 5 * time.Minute
	}
	return p
}

const defaultProfileSize = 30

// Service is the investigation orchestrator.
type Service struct {
	opt    Optimizer
	ret    Retriever
	store  DocumentStore
	eval   Evaluator
	synth  Synthesizer
	policy Policy
	logger *zap.Logger
}

// New wires the pipeline stages into an orchestrator.
func New(
	opt Optimizer, ret Retriever, store DocumentStore,
	eval Evaluator, synth Synthesizer,
	policy Policy, logger *zap.Logger,
) *Service {
	return &Service{
		opt:    opt,
		ret:    ret,
		store:  store,
		eval:   eval,
		synth:  synth,
		policy: policy.withDefaults(),
		logger: logger,
	}
}

// Run executes one investigation end to end and returns the report.
//
// Returns domain.ErrEscalationDeclined when the planner judges the intent a
// plain-chat exchange, and domain.ErrSearchFailed when the task aborts with
// nothing retained. A terminal retrieval failure stops searching and
// synthesizes whatever was already retained as a partial report; a retrieval
// that merely exhausted its retries skips that query and continues.
func (s *Service) Run(ctx context.Context, profile domain.TargetProfile, turns []domain.Turn) (domain.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.TaskTimeout)
	defer cancel()

	intent := profile.Query
	size := profile.Size
	if size <= 0 {
		size = defaultProfileSize
	}

	st := newTracker(s.logger)
	st.to(StateDecidingEscalation)

	task := domain.NewSearchTask(intent, s.policy.MaxDepth, s.policy.CallBudget)

	plan, err := s.opt.Plan(ctx, planIntent(profile), turns, task)
	if err != nil {
		return s.abort(st, fmt.Errorf("plan investigation: %w", err))
	}
	if !plan.Escalate {
		st.to(StateDone)
		metrics.TasksTotal.WithLabelValues("declined").Inc()
		s.logger.Info("Escalation declined", zap.String("intent", intent))
		return domain.Report{}, domain.ErrEscalationDeclined
	}
	st.to(StateOptimizing)

	queries := plan.Queries
	partial := false
	aborted := false

loop:
	for {
		metrics.TaskIterationsTotal.Inc()
		s.logger.Info("Investigation iteration",
			zap.Int("depth", task.CurrentDepth),
			zap.Int("budget_remaining", task.BudgetRemaining),
			zap.Strings("queries", queries))

		for _, q := range queries {
			if task.Seen(q) {
				continue
			}
			if task.BudgetRemaining == 0 {
				s.logger.Info("Call budget exhausted", zap.Int("visited", task.VisitedCount()))
				break
			}
			task.Visit(q)
			task.ConsumeBudget(1)

			st.to(StateRetrieving)
			docs, err := s.ret.Fetch(ctx, q, size, profile.Include)
			if err != nil {
				if ctx.Err() != nil {
					return s.abort(st, fmt.Errorf("retrieve %q: %w", q, ctx.Err()))
				}
				partial = true
				var rerr *domain.RetrievalError
				if errors.As(err, &rerr) && !rerr.Retryable {
					s.logger.Error("Terminal retrieval failure, stopping search",
						zap.String("query", q), zap.Error(err))
					aborted = true
					break loop
				}
				s.logger.Warn("Retrieval failed, continuing with partial results",
					zap.String("query", q), zap.Error(err))
				continue
			}
			if len(docs) == 0 {
				s.logger.Info("Query returned no documents", zap.String("query", q))
				continue
			}

			st.to(StatePersisting)
			toEval, err := s.persist(ctx, task, docs, q, profile.ContextLines, &partial)
			if err != nil {
				return s.abort(st, err)
			}
			if len(toEval) == 0 {
				continue
			}

			st.to(StateEvaluating)
			scored, err := s.eval.EvaluateAll(ctx, toEval, q)
			if err != nil {
				if ctx.Err() != nil {
					return s.abort(st, fmt.Errorf("evaluate batch for %q: %w", q, ctx.Err()))
				}
				partial = true
				s.logger.Error("Evaluation batch failed, dropping query results",
					zap.String("query", q), zap.Error(err))
				continue
			}
			task.Retain(scored...)
		}

		st.to(StateAssessingInsight)
		mean := meanInsight(task.Retained())
		s.logger.Info("Insight assessment",
			zap.Float64("mean_insight", mean),
			zap.Float64("threshold", s.policy.InsightThreshold),
			zap.Int("retained", len(task.Retained())))
		if mean >= s.policy.InsightThreshold && len(task.Retained()) > 0 {
			break
		}
		if task.CurrentDepth >= task.MaxDepth || task.BudgetRemaining == 0 {
			break
		}

		task.CurrentDepth++
		st.to(StateOptimizing)
		gap := insightGap(mean, s.policy.InsightThreshold, len(task.Retained()))
		followUps, err := s.opt.FollowUps(ctx, planIntent(profile), gap, turns, task)
		if err != nil {
			return s.abort(st, fmt.Errorf("plan follow-ups: %w", err))
		}
		if len(followUps) == 0 {
			s.logger.Info("No follow-up queries, synthesizing with current set")
			break
		}
		queries = followUps
	}

	if aborted && len(task.Retained()) == 0 {
		return s.abort(st, fmt.Errorf("%w: nothing retained before the search stopped", domain.ErrSearchFailed))
	}

	st.to(StateSynthesizing)
	report, err := s.synth.Synthesize(ctx, intent, task.Retained(), task.Discards(), partial)
	if err != nil {
		return s.abort(st, fmt.Errorf("synthesize report: %w", err))
	}
	st.to(StateDone)
	metrics.TasksTotal.WithLabelValues(outcomeLabel(report.Outcome)).Inc()
	s.logger.Info("Investigation finished",
		zap.String("outcome", string(report.Outcome)),
		zap.Int("citations", len(report.Citations)),
		zap.Int("discarded", len(report.Discarded)),
		zap.Int("queries_issued", task.VisitedCount()))
	return report, nil
}

// persist writes the batch, re-reads the canonical rows, and splits each
// document into the evaluation set or the discard log. Duplicate doc_ids are
// the expected idempotence path; only the canonical row (first-seen query and
// timestamp) moves forward. Storage failures drop the document and mark the
// task partial; only cancellation propagates.
func (s *Service) persist(
	ctx context.Context, task *domain.SearchTask,
	docs []domain.Document, query string, contextLines int,
	partial *bool,
) ([]domain.Document, error) {
	toEval := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		stored, err := s.store.Put(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("persist %s: %w", doc.DocID, ctx.Err())
			}
			*partial = true
			s.logger.Error("Persist failed, dropping document",
				zap.String("doc_id", doc.DocID), zap.Error(err))
			continue
		}
		canonical, err := s.store.Get(ctx, doc.DocID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("read back %s: %w", doc.DocID, ctx.Err())
			}
			*partial = true
			s.logger.Error("Read-back failed, dropping document",
				zap.String("doc_id", doc.DocID), zap.Error(err))
			continue
		}
		if !stored {
			s.logger.Debug("Document already stored", zap.String("doc_id", doc.DocID))
		}

		if len(canonical.Content.Excerpts(query, contextLines)) == 0 {
			task.Discard(domain.DiscardEntry{
				DocID:  canonical.DocID,
				Title:  canonical.Title,
				Reason: fmt.Sprintf("no excerpt matched %q", query),
			})
			continue
		}
		toEval = append(toEval, canonical)
	}
	return toEval, nil
}

func (s *Service) abort(st *tracker, err error) (domain.Report, error) {
	st.to(StateAborted)
	metrics.TasksTotal.WithLabelValues("failed").Inc()
	return domain.Report{}, err
}

// planIntent is the text the planner sees: the profile description, when
// present, gives it context the bare query lacks.
func planIntent(profile domain.TargetProfile) string {
	if profile.Description == "" {
		return profile.Query
	}
	return profile.Description + "\n\n" + profile.Query
}

func meanInsight(retained []domain.ScoredDocument) float64 {
	if len(retained) == 0 {
		return 0
	}
	var sum float64
	for _, sd := range retained {
		sum += float64(sd.Evaluation.InsightScore)
	}
	return sum / float64(len(retained))
}

func insightGap(mean, threshold float64, retained int) string {
	if retained == 0 {
		return "no documents with usable excerpts were found yet"
	}
	return fmt.Sprintf("mean insight %.1f across %d documents is below the %.1f target; "+
		"the material so far lacks depth on the subject", mean, retained, threshold)
}

func outcomeLabel(o domain.ReportOutcome) string {
	switch o {
	case domain.OutcomeComplete:
		return "complete"
	case domain.OutcomePartial:
		return "partial"
	case domain.OutcomeNoRelevantMaterial:
		return "empty"
	}
	return "complete"
}
