package evalcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/db"
)

type mockCompleter struct {
	out   string
	err   error
	calls int
}

func (m *mockCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.out, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedCompleter(t *testing.T, inner *mockCompleter) (*CachedCompleter, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cc := New(inner, ms, time.Hour, nil, zap.NewNop())
	return cc, ms
}
