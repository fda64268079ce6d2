package optimize

import (
	"context"
	"sync/atomic"

	"github.com/intelforge/deepsearch/internal/domain"
)

type mockCompleter struct {
	out   string
	err   error
	calls atomic.Int32

	lastSystemPrompt string
	lastUserPrompt   string
}

func (m *mockCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls.Add(1)
	m.lastSystemPrompt = systemPrompt
	m.lastUserPrompt = userPrompt
	if m.err != nil {
		return "", m.err
	}
	return m.out, nil
}

type mockVisited struct {
	seen map[string]struct{}
}

func newMockVisited(queries ...string) *mockVisited {
	v := &mockVisited{seen: make(map[string]struct{}, len(queries))}
	for _, q := range queries {
		v.seen[domain.NormalizeQuery(q)] = struct{}{}
	}
	return v
}

func (v *mockVisited) Seen(query string) bool {
	_, ok := v.seen[domain.NormalizeQuery(query)]
	return ok
}
