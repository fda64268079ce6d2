package evaluate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/intelforge/deepsearch/internal/domain"
)

type mockCompleter struct {
	completeFn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	calls      atomic.Int32
}

func (m *mockCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls.Add(1)
	return m.completeFn(ctx, systemPrompt, userPrompt)
}

// mockWriter records evaluations in memory; safe for concurrent use because
// EvaluateAll writes from multiple goroutines.
type mockWriter struct {
	mu      sync.Mutex
	records []domain.Evaluation
	err     error
}

func (m *mockWriter) PutEvaluation(_ context.Context, ev domain.Evaluation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	ev.EvaluationID = uuid.NewString()
	m.records = append(m.records, ev)
	return ev.EvaluationID, nil
}

func (m *mockWriter) stored() []domain.Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Evaluation, len(m.records))
	copy(out, m.records)
	return out
}
