// Package optimize turns natural-language intent into structured keyword
// queries and decides whether an intent warrants escalation into the
// investigation pipeline.
package optimize

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
)

// Service is the query optimizer. It is a pure transformation around one
// LLM call: no stored state, safe for concurrent use.
type Service struct {
	llm        Completer
	maxQueries int
	logger     *zap.Logger
}

// New creates a query optimizer.
func New(llm Completer, logger *zap.Logger) *Service {
	return &Service{llm: llm, maxQueries: 3, logger: logger}
}

// WithMaxQueries bounds how many queries a single plan may emit.
func (s *Service) WithMaxQueries(n int) *Service {
	if n > 0 {
		s.maxQueries = n
	}
	return s
}

type planResponse struct {
	Escalate bool     `json:"escalate"`
	Queries  []string `json:"queries"`
}

// Plan analyzes the intent against the conversation and emits the
// escalation decision plus optimized queries. Queries already in the
// visited set are never re-emitted. LLM failure degrades to deterministic
// keyword extraction with escalation assumed, so a planner outage never
// fails the pipeline.
func (s *Service) Plan(
	ctx context.Context, intent string, turns []domain.Turn, visited Visited,
) (domain.QueryPlan, error) {
	raw, err := s.llm.Complete(ctx, plannerSystemPrompt, buildPlannerUserPrompt(intent, turns))
	if err != nil {
		if ctx.Err() != nil {
			return domain.QueryPlan{}, fmt.Errorf("plan queries: %w", ctx.Err())
		}
		s.logger.Warn("Planner LLM failed, falling back to keyword extraction", zap.Error(err))
		return s.fallbackPlan(intent, visited), nil
	}

	parsed, ok := parsePlanResponse(raw)
	if !ok {
		s.logger.Warn("Planner response unparseable, falling back to keyword extraction",
			zap.String("response", truncate(raw, 200)))
		return s.fallbackPlan(intent, visited), nil
	}

	if !parsed.Escalate {
		return domain.QueryPlan{}, nil
	}

	queries := s.filterQueries(parsed.Queries, visited)
	if len(queries) == 0 {
		// Planner escalated but produced nothing usable.
		return s.fallbackPlan(intent, visited), nil
	}
	return domain.QueryPlan{Escalate: true, Queries: queries}, nil
}

// FollowUps asks for follow-up queries seeded with the insight gap the
// orchestrator identified. Degrades the same way Plan does.
func (s *Service) FollowUps(
	ctx context.Context, intent, gap string, turns []domain.Turn, visited Visited,
) ([]string, error) {
	raw, err := s.llm.Complete(ctx, plannerSystemPrompt, buildFollowUpUserPrompt(intent, gap, turns))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("follow-up queries: %w", ctx.Err())
		}
		s.logger.Warn("Follow-up LLM failed, falling back to keyword extraction", zap.Error(err))
		return s.fallbackPlan(intent+" "+gap, visited).Queries, nil
	}

	parsed, ok := parsePlanResponse(raw)
	if !ok {
		return s.fallbackPlan(intent+" "+gap, visited).Queries, nil
	}
	return s.filterQueries(parsed.Queries, visited), nil
}

func (s *Service) fallbackPlan(intent string, visited Visited) domain.QueryPlan {
	q := ExtractKeywords(intent)
	if q == "" || (visited != nil && visited.Seen(q)) {
		return domain.QueryPlan{}
	}
	return domain.QueryPlan{Escalate: true, Queries: []string{q}}
}

// filterQueries normalizes, deduplicates, drops visited entries, and bounds
// the result.
func (s *Service) filterQueries(queries []string, visited Visited) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		norm := domain.NormalizeQuery(q)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		if visited != nil && visited.Seen(q) {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
		if len(out) >= s.maxQueries {
			break
		}
	}
	return out
}

func parsePlanResponse(raw string) (planResponse, bool) {
	obj, ok := domain.ExtractJSONObject(raw)
	if !ok {
		return planResponse{}, false
	}
	var parsed planResponse
	if err := json.Unmarshal(obj, &parsed); err != nil {
		return planResponse{}, false
	}
	return parsed, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
