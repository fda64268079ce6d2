// Package retrieval calls the external entity-search API with a shared rate
// limiter and bounded exponential-backoff retries.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
	"github.com/intelforge/deepsearch/internal/metrics"
)

// Config holds the search API client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Client fetches raw documents from the entity-search API. It does not
// deduplicate results (the document store owns that invariant) but caps the
// returned count at the requested size and preserves remote order.
type Client struct {
	httpc       *http.Client
	baseURL     string
	apiKey      string
	limiter     *Limiter
	backoff     Backoff
	maxAttempts int
	logger      *zap.Logger
}

// Backoff defaults applied when the config leaves them unset. Retries
// without backoff would hammer the API back to back.
const (
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 8 * time.Second
)

// NewClient creates a search API client. The limiter is process-wide shared
// state constructed once by the composition root.
func NewClient(cfg Config, limiter *Limiter, logger *zap.Logger) *Client {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Client{
		httpc:       &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		limiter:     limiter,
		backoff:     Backoff{Base: baseBackoff, Max: maxBackoff},
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

type searchRequest struct {
	Query   string            `json:"query"`
	Size    int               `json:"size"`
	Include map[string]string `json:"include,omitempty"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChunkContent string `json:"chunk_content"`
	File         struct {
		MimeType string `json:"mime_type"`
		FilePath string `json:"file_path"`
	} `json:"file"`
}

// Fetch retrieves up to size raw documents for a query. Transient failures
// (network errors, 429, 5xx) are retried with backoff up to the attempt
// budget; terminal failures (other 4xx) fail immediately. Either way the
// error is a *domain.RetrievalError carrying the classification.
func (c *Client) Fetch(ctx context.Context, query string, size int, include map[string]string) ([]domain.Document, error) {
	payload, err := json.Marshal(searchRequest{Query: query, Size: size, Include: include})
	if err != nil {
		return nil, &domain.RetrievalError{Query: query, Attempts: 0, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff.NextDelay(attempt - 1)
			metrics.RetrievalRetriesTotal.Inc()
			c.logger.Warn("Retrying search request",
				zap.String("query", query),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &domain.RetrievalError{Query: query, Attempts: attempt, Retryable: true, Err: ctx.Err()}
			case <-timer.C:
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, &domain.RetrievalError{Query: query, Attempts: attempt, Retryable: true, Err: err}
		}

		docs, err := c.doSearch(ctx, query, size, payload)
		if err == nil {
			metrics.RetrievalRequestsTotal.WithLabelValues("success").Inc()
			return docs, nil
		}
		lastErr = err

		var transient *transientError
		if !errors.As(err, &transient) {
			metrics.RetrievalRequestsTotal.WithLabelValues("terminal").Inc()
			return nil, &domain.RetrievalError{Query: query, Attempts: attempt + 1, Err: err}
		}
		metrics.RetrievalRequestsTotal.WithLabelValues("transient").Inc()

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &domain.RetrievalError{Query: query, Attempts: c.maxAttempts, Retryable: true, Err: lastErr}
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *Client) doSearch(ctx context.Context, query string, size int, payload []byte) ([]domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chunks/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Network failures and client timeouts are worth retrying.
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, &transientError{err: fmt.Errorf("search api http %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api http %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &transientError{err: fmt.Errorf("decode response: %w", err)}
	}

	docs := make([]domain.Document, 0, len(body.Items))
	for _, item := range body.Items {
		if len(docs) >= size && size > 0 {
			break
		}
		docs = append(docs, itemToDocument(query, item))
	}
	return docs, nil
}

func itemToDocument(query string, item searchItem) domain.Document {
	content := domain.TextContent(item.ChunkContent)
	if strings.Contains(item.File.MimeType, "json") {
		content = domain.JSONContent(item.ChunkContent)
	}

	id := item.ID
	if id == "" {
		id = domain.ContentHashID(item.ChunkContent)
	}

	title := item.Title
	if title == "" {
		title = item.File.FilePath
	}

	return domain.Document{
		DocID:   id,
		Query:   query,
		Title:   title,
		Content: content,
		Metadata: map[string]string{
			"mime_type": item.File.MimeType,
			"file_path": item.File.FilePath,
		},
	}
}
