package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
)

func newTestClient(t *testing.T, baseURL string, maxAttempts int) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Timeout:     time.Second,
		MaxAttempts: maxAttempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}, NewLimiter(0), zap.NewNop())
}

func itemsResponse(items ...map[string]any) []byte {
	b, _ := json.Marshal(map[string]any{"items": items})
	return b
}

func TestFetch_Success(t *testing.T) {
	var gotAuth string
	var gotBody searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chunks/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write(itemsResponse(
			map[string]any{"id": "doc-1", "title": "first", "chunk_content": "Booth was here"},
			map[string]any{
				"id": "doc-2", "chunk_content": `{"name":"Booth"}`,
				"file": map[string]any{"mime_type": "application/json", "file_path": "people.json"},
			},
		))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	docs, err := c.Fetch(context.Background(), "booth", 10, map[string]string{"mime_type": "text/plain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotBody.Query != "booth" || gotBody.Size != 10 || gotBody.Include["mime_type"] != "text/plain" {
		t.Errorf("request body: %+v", gotBody)
	}

	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].DocID != "doc-1" || docs[1].DocID != "doc-2" {
		t.Errorf("remote order not preserved: %s, %s", docs[0].DocID, docs[1].DocID)
	}
	if docs[0].Content.Kind != domain.ContentText {
		t.Errorf("doc-1 kind: got %s", docs[0].Content.Kind)
	}
	if docs[1].Content.Kind != domain.ContentJSON {
		t.Errorf("doc-2 kind: got %s", docs[1].Content.Kind)
	}
	// Title falls back to file path when missing.
	if docs[1].Title != "people.json" {
		t.Errorf("doc-2 title: got %q", docs[1].Title)
	}
	if docs[0].Query != "booth" {
		t.Errorf("doc-1 query: got %q", docs[0].Query)
	}
}

func TestFetch_MissingIDGetsContentHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(itemsResponse(map[string]any{"chunk_content": "payload"}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	docs, err := c.Fetch(context.Background(), "q", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs[0].DocID != domain.ContentHashID("payload") {
		t.Errorf("expected content hash ID, got %q", docs[0].DocID)
	}
}

func TestFetch_CapsAtRequestedSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(itemsResponse(
			map[string]any{"id": "a", "chunk_content": "1"},
			map[string]any{"id": "b", "chunk_content": "2"},
			map[string]any{"id": "c", "chunk_content": "3"},
		))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	docs, err := c.Fetch(context.Background(), "q", 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].DocID != "a" || docs[1].DocID != "b" {
		t.Errorf("size cap: got %d docs", len(docs))
	}
}

func TestFetch_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(itemsResponse(map[string]any{"id": "a", "chunk_content": "1"}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4)
	docs, err := c.Fetch(context.Background(), "q", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls (2 rejected), got %d", calls.Load())
	}
}

func TestFetch_TransientExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.Fetch(context.Background(), "q", 5, nil)

	var rerr *domain.RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if !rerr.Retryable {
		t.Error("exhausted retries must be marked retryable")
	}
	if rerr.Attempts != 3 {
		t.Errorf("attempts: got %d, want 3", rerr.Attempts)
	}
}

func TestFetch_TerminalOn401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4)
	_, err := c.Fetch(context.Background(), "q", 5, nil)

	var rerr *domain.RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if rerr.Retryable {
		t.Error("4xx must be terminal")
	}
	if calls.Load() != 1 {
		t.Errorf("terminal failure must not retry, got %d calls", calls.Load())
	}
}

func TestFetch_MalformedBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	_, err := c.Fetch(context.Background(), "q", 5, nil)

	var rerr *domain.RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if !rerr.Retryable {
		t.Error("decode failures are worth retrying")
	}
}

func TestNewClient_DefaultsBackoffWhenUnset(t *testing.T) {
	c := NewClient(Config{
		BaseURL:     "http://search.local",
		MaxAttempts: 4,
	}, NewLimiter(0), zap.NewNop())

	if c.backoff.Base != defaultBaseBackoff {
		t.Errorf("base backoff: got %v, want %v", c.backoff.Base, defaultBaseBackoff)
	}
	if c.backoff.Max != defaultMaxBackoff {
		t.Errorf("max backoff: got %v, want %v", c.backoff.Max, defaultMaxBackoff)
	}
	// Retries must actually wait: jitter spreads the delay over
	// [base/2, base], it never collapses to zero.
	for i := 0; i < 20; i++ {
		if d := c.backoff.NextDelay(0); d < defaultBaseBackoff/2 {
			t.Fatalf("first retry delay: got %v, want at least %v", d, defaultBaseBackoff/2)
		}
	}
}

func TestNewClient_KeepsConfiguredBackoff(t *testing.T) {
	c := NewClient(Config{
		BaseURL:     "http://search.local",
		MaxAttempts: 4,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  time.Second,
	}, NewLimiter(0), zap.NewNop())

	if c.backoff.Base != 100*time.Millisecond || c.backoff.Max != time.Second {
		t.Errorf("configured backoff not kept: %v/%v", c.backoff.Base, c.backoff.Max)
	}
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		Timeout:     time.Second,
		MaxAttempts: 5,
		BaseBackoff: time.Minute,
		MaxBackoff:  time.Minute,
	}, NewLimiter(0), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Fetch(ctx, "q", 5, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("fetch did not abandon the backoff wait on cancel")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}
