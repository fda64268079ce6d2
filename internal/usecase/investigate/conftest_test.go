package investigate

import (
	"context"
	"sync"

	"github.com/intelforge/deepsearch/internal/domain"
	"github.com/intelforge/deepsearch/internal/usecase/optimize"
)

type mockOptimizer struct {
	planFn      func(ctx context.Context, intent string, turns []domain.Turn, visited optimize.Visited) (domain.QueryPlan, error)
	followUpsFn func(ctx context.Context, intent, gap string, turns []domain.Turn, visited optimize.Visited) ([]string, error)

	planCalls     int
	followUpCalls int
	lastGap       string
}

func (m *mockOptimizer) Plan(ctx context.Context, intent string, turns []domain.Turn, visited optimize.Visited) (domain.QueryPlan, error) {
	m.planCalls++
	return m.planFn(ctx, intent, turns, visited)
}

func (m *mockOptimizer) FollowUps(ctx context.Context, intent, gap string, turns []domain.Turn, visited optimize.Visited) ([]string, error) {
	m.followUpCalls++
	m.lastGap = gap
	if m.followUpsFn == nil {
		return nil, nil
	}
	return m.followUpsFn(ctx, intent, gap, turns, visited)
}

type mockRetriever struct {
	fetchFn func(ctx context.Context, query string, size int, include map[string]string) ([]domain.Document, error)
	queries []string
}

func (m *mockRetriever) Fetch(ctx context.Context, query string, size int, include map[string]string) ([]domain.Document, error) {
	m.queries = append(m.queries, query)
	return m.fetchFn(ctx, query, size, include)
}

// mockStore keeps first-seen rows like the real store: a duplicate Put is a
// no-op observed as stored=false.
type mockStore struct {
	mu     sync.Mutex
	docs   map[string]domain.Document
	putErr error
	getErr error
	puts   int
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string]domain.Document)}
}

func (m *mockStore) Put(_ context.Context, doc domain.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return false, m.putErr
	}
	if _, ok := m.docs[doc.DocID]; ok {
		return false, nil
	}
	m.docs[doc.DocID] = doc
	return true, nil
}

func (m *mockStore) Get(_ context.Context, docID string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Document{}, m.getErr
	}
	doc, ok := m.docs[docID]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

type mockEvaluator struct {
	evaluateFn func(ctx context.Context, docs []domain.Document, query string) ([]domain.ScoredDocument, error)
	batches    [][]string
}

func (m *mockEvaluator) EvaluateAll(ctx context.Context, docs []domain.Document, query string) ([]domain.ScoredDocument, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	m.batches = append(m.batches, ids)
	return m.evaluateFn(ctx, docs, query)
}

// scoreAll builds an evaluator that gives every document the same scores.
func scoreAll(relevance, insight int) *mockEvaluator {
	return &mockEvaluator{evaluateFn: func(_ context.Context, docs []domain.Document, query string) ([]domain.ScoredDocument, error) {
		out := make([]domain.ScoredDocument, len(docs))
		for i, d := range docs {
			out[i] = domain.ScoredDocument{
				Document: d,
				Evaluation: domain.Evaluation{
					DocID: d.DocID, Query: query,
					RelevanceScore: relevance, InsightScore: insight,
					EvaluationText: "scored " + d.DocID,
				},
			}
		}
		return out, nil
	}}
}

type mockSynthesizer struct {
	synthesizeFn func(ctx context.Context, intent string, retained []domain.ScoredDocument, discarded []domain.DiscardEntry, partial bool) (domain.Report, error)

	calls     int
	retained  []domain.ScoredDocument
	discarded []domain.DiscardEntry
	partial   bool
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, intent string, retained []domain.ScoredDocument, discarded []domain.DiscardEntry, partial bool) (domain.Report, error) {
	m.calls++
	m.retained = retained
	m.discarded = discarded
	m.partial = partial
	if m.synthesizeFn != nil {
		return m.synthesizeFn(ctx, intent, retained, discarded, partial)
	}
	outcome := domain.OutcomeComplete
	if partial {
		outcome = domain.OutcomePartial
	}
	return domain.Report{Intent: intent, Body: "report body", Outcome: outcome}, nil
}
