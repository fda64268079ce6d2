package synthesize

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
)

type mockCompleter struct {
	out   string
	err   error
	calls atomic.Int32

	lastUserPrompt string
}

func (m *mockCompleter) Complete(_ context.Context, _, userPrompt string) (string, error) {
	m.calls.Add(1)
	m.lastUserPrompt = userPrompt
	if m.err != nil {
		return "", m.err
	}
	return m.out, nil
}

func scoredDoc(id string, relevance, insight int, createdAt time.Time) domain.ScoredDocument {
	return domain.ScoredDocument{
		Document: domain.Document{
			DocID:     id,
			Title:     id + ".txt",
			Content:   domain.TextContent("content of " + id),
			CreatedAt: createdAt,
		},
		Evaluation: domain.Evaluation{
			DocID:          id,
			RelevanceScore: relevance,
			InsightScore:   insight,
			EvaluationText: "assessment of " + id,
		},
	}
}

func TestRank_CompositeDescendingWithCreatedAtTieBreak(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	docs := []domain.ScoredDocument{
		scoredDoc("low", 4, 4, base),                        // composite 4.0
		scoredDoc("tie-late", 8, 7, base.Add(2*time.Hour)),  // composite 7.5
		scoredDoc("tie-early", 7, 8, base.Add(1*time.Hour)), // composite 7.5
	}

	ranked := Rank(docs)
	want := []string{"tie-early", "tie-late", "low"}
	for i, id := range want {
		if ranked[i].Document.DocID != id {
			t.Errorf("rank[%d]: got %s, want %s", i, ranked[i].Document.DocID, id)
		}
	}
	// Input untouched.
	if docs[0].Document.DocID != "low" {
		t.Error("Rank must not mutate its input")
	}
}

func TestSynthesize_CitesInRankOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	llm := &mockCompleter{out: "Booth fired the fatal shot [1] and fled via the Navy Yard Bridge [2]."}
	svc := New(llm, zap.NewNop())

	retained := []domain.ScoredDocument{
		scoredDoc("bridge", 6, 5, base),
		scoredDoc("booth", 9, 8, base),
	}
	report, err := svc.Synthesize(context.Background(), "who shot Lincoln", retained, nil, false)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if report.Outcome != domain.OutcomeComplete {
		t.Errorf("outcome: got %s, want complete", report.Outcome)
	}
	if len(report.Citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(report.Citations))
	}
	if report.Citations[0].DocID != "booth" || report.Citations[0].Ref != 1 {
		t.Errorf("first citation must be the top-ranked doc: %+v", report.Citations[0])
	}
	if report.Citations[1].DocID != "bridge" || report.Citations[1].Ref != 2 {
		t.Errorf("second citation: %+v", report.Citations[1])
	}
	if !strings.Contains(report.Body, "Sources:\n[1] booth — booth.txt") {
		t.Errorf("body missing source list:\n%s", report.Body)
	}
}

func TestSynthesize_FiltersBelowRelevanceThreshold(t *testing.T) {
	base := time.Now().UTC()
	llm := &mockCompleter{out: "report body"}
	svc := New(llm, zap.NewNop()).WithRelevanceThreshold(5)

	retained := []domain.ScoredDocument{
		scoredDoc("keep", 7, 2, base),
		scoredDoc("drop", 4, 9, base), // high insight cannot rescue low relevance
	}
	report, err := svc.Synthesize(context.Background(), "intent", retained, nil, false)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(report.Citations) != 1 || report.Citations[0].DocID != "keep" {
		t.Errorf("citations: %+v", report.Citations)
	}
	if strings.Contains(llm.lastUserPrompt, "content of drop") {
		t.Error("sub-threshold document leaked into the report prompt")
	}
}

func TestSynthesize_NoRelevantMaterial(t *testing.T) {
	base := time.Now().UTC()
	llm := &mockCompleter{out: "should not be called"}
	svc := New(llm, zap.NewNop())

	retained := []domain.ScoredDocument{scoredDoc("weak", 2, 1, base)}
	report, err := svc.Synthesize(context.Background(), "intent", retained, nil, false)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if report.Outcome != domain.OutcomeNoRelevantMaterial {
		t.Errorf("outcome: got %s, want no_relevant_material", report.Outcome)
	}
	if len(report.Citations) != 0 {
		t.Errorf("no-material report must not cite: %+v", report.Citations)
	}
	if llm.calls.Load() != 0 {
		t.Error("no-material report must not consume an LLM call")
	}
	if report.Body == "" {
		t.Error("no-material report still needs an explanatory body")
	}
}

func TestSynthesize_PartialOutcome(t *testing.T) {
	base := time.Now().UTC()
	svc := New(&mockCompleter{out: "body"}, zap.NewNop())

	report, err := svc.Synthesize(context.Background(), "intent",
		[]domain.ScoredDocument{scoredDoc("doc", 8, 8, base)}, nil, true)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if report.Outcome != domain.OutcomePartial {
		t.Errorf("outcome: got %s, want partial", report.Outcome)
	}
}

func TestSynthesize_LLMFailureEmitsFallbackFindings(t *testing.T) {
	base := time.Now().UTC()
	llm := &mockCompleter{err: errors.New("inference backend down")}
	svc := New(llm, zap.NewNop())

	report, err := svc.Synthesize(context.Background(), "intent",
		[]domain.ScoredDocument{scoredDoc("doc-1", 8, 7, base)}, nil, false)
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if !strings.Contains(report.Body, "assessment of doc-1 [^1]") {
		t.Errorf("fallback body missing the finding:\n%s", report.Body)
	}
	if len(report.Citations) != 1 {
		t.Errorf("fallback report still cites sources: %+v", report.Citations)
	}
}

func TestSynthesize_ContextErrorPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &mockCompleter{err: context.Canceled}
	svc := New(llm, zap.NewNop())
	cancel()

	_, err := svc.Synthesize(ctx, "intent",
		[]domain.ScoredDocument{scoredDoc("doc", 8, 8, time.Now().UTC())}, nil, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestSynthesize_MaxSourcesCap(t *testing.T) {
	base := time.Now().UTC()
	svc := New(&mockCompleter{out: "body"}, zap.NewNop()).WithMaxSources(2)

	retained := []domain.ScoredDocument{
		scoredDoc("a", 9, 9, base),
		scoredDoc("b", 8, 8, base),
		scoredDoc("c", 7, 7, base),
	}
	report, err := svc.Synthesize(context.Background(), "intent", retained, nil, false)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(report.Citations) != 2 {
		t.Errorf("got %d citations, want 2", len(report.Citations))
	}
}

func TestSynthesize_CarriesDiscards(t *testing.T) {
	discards := []domain.DiscardEntry{{DocID: "noisy", Title: "noisy.txt", Reason: "no excerpt matched"}}
	svc := New(&mockCompleter{out: "body"}, zap.NewNop())

	report, err := svc.Synthesize(context.Background(), "intent",
		[]domain.ScoredDocument{scoredDoc("doc", 8, 8, time.Now().UTC())}, discards, false)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(report.Discarded) != 1 || report.Discarded[0].DocID != "noisy" {
		t.Errorf("discard log not carried: %+v", report.Discarded)
	}
}
