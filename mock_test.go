package deepsearch

import (
	"context"

	"github.com/intelforge/deepsearch/internal/domain"
)

type mockInvestigator struct {
	report  domain.Report
	err     error
	profile domain.TargetProfile
	turns   []domain.Turn
	calls   int
}

func (m *mockInvestigator) Run(
	_ context.Context, profile domain.TargetProfile, turns []domain.Turn,
) (domain.Report, error) {
	m.calls++
	m.profile = profile
	m.turns = turns
	if m.err != nil {
		return domain.Report{}, m.err
	}
	return m.report, nil
}

type mockReader struct {
	docs  map[string]domain.Document
	evals map[string][]domain.Evaluation
	err   error
}

func (m *mockReader) Get(_ context.Context, docID string) (domain.Document, error) {
	if m.err != nil {
		return domain.Document{}, m.err
	}
	doc, ok := m.docs[docID]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *mockReader) ListEvaluationsByDoc(_ context.Context, docID string) ([]domain.Evaluation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.evals[docID], nil
}

func (m *mockReader) CountDocuments(_ context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.docs), nil
}
