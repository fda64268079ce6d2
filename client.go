// Package deepsearch is the embedded SDK: the full investigation pipeline
// wired over a local document store, without the HTTP server.
package deepsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/db"
	dbRedis "github.com/intelforge/deepsearch/internal/db/redis"
	"github.com/intelforge/deepsearch/internal/domain"
	"github.com/intelforge/deepsearch/internal/metrics"
	"github.com/intelforge/deepsearch/internal/repository/evalcache"
	"github.com/intelforge/deepsearch/internal/repository/store"
	"github.com/intelforge/deepsearch/internal/retrieval"
	openaiLLM "github.com/intelforge/deepsearch/internal/transport/openai"
	"github.com/intelforge/deepsearch/internal/usecase/evaluate"
	"github.com/intelforge/deepsearch/internal/usecase/investigate"
	"github.com/intelforge/deepsearch/internal/usecase/optimize"
	"github.com/intelforge/deepsearch/internal/usecase/synthesize"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, substitutable in tests.
type investigator interface {
	Run(ctx context.Context, profile domain.TargetProfile, turns []domain.Turn) (domain.Report, error)
}

type documentReader interface {
	Get(ctx context.Context, docID string) (domain.Document, error)
	ListEvaluationsByDoc(ctx context.Context, docID string) ([]domain.Evaluation, error)
	CountDocuments(ctx context.Context) (int, error)
}

// Client is the deepsearch SDK entry point.
type Client struct {
	store        *store.Store
	kv           db.Store
	investigator investigator
	documents    documentReader
}

// New creates a deepsearch Client and opens the document store.
// The provided context is used for the initial cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig(opts...)

	if cfg.searchBaseURL == "" {
		return nil, errors.New("deepsearch: search API address required (use WithSearchAPI)")
	}
	if cfg.completer == nil && cfg.llmAPIKey == "" {
		return nil, errors.New("deepsearch: inference provider required (use WithLLM or WithCompleter)")
	}

	st, err := store.Open(cfg.dbPath)
	if err != nil {
		return nil, fmt.Errorf("deepsearch: open document store: %w", err)
	}

	kv, err := openCache(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return wireClient(st, kv, cfg), nil
}

func newClientConfig(opts ...Option) *clientConfig {
	cfg := &clientConfig{
		dbPath:      "deepsearch.db",
		minInterval: 2 * time.Second,
		maxAttempts: 4,
		backoffBase: 500 * time.Millisecond,
		backoffMax:  8 * time.Second,
		cacheTTL:    24 * time.Hour,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	return cfg
}

func openCache(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	if len(cfg.cacheAddrs) == 0 {
		return nil, nil
	}
	kv, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.cacheAddrs,
		Password: cfg.cachePassword,
	})
	if err != nil {
		return nil, fmt.Errorf("deepsearch: create cache store: %w", err)
	}
	if err := kv.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		kv.Close()
		return nil, fmt.Errorf("deepsearch: cache not ready: %w", err)
	}
	return kv, nil
}

func wireClient(st *store.Store, kv db.Store, cfg *clientConfig) *Client {
	planner := roleCompleter(cfg, "planner")
	evalLLM := roleCompleter(cfg, "evaluator")
	synthLLM := roleCompleter(cfg, "synthesizer")

	if kv != nil {
		evalLLM = evalcache.New(evalLLM, kv, cfg.cacheTTL, metrics.EvaluationCacheTotal, cfg.logger)
	}

	limiter := retrieval.NewLimiter(cfg.minInterval)
	searchClient := retrieval.NewClient(retrieval.Config{
		BaseURL:     cfg.searchBaseURL,
		APIKey:      cfg.searchAPIKey,
		Timeout:     30 * time.Second,
		MaxAttempts: cfg.maxAttempts,
		BaseBackoff: cfg.backoffBase,
		MaxBackoff:  cfg.backoffMax,
	}, limiter, cfg.logger)

	optimizer := optimize.New(planner, cfg.logger)
	evaluator := evaluate.New(evalLLM, st, cfg.logger)
	synthesizer := synthesize.New(synthLLM, cfg.logger)
	if cfg.relevanceThreshold > 0 {
		synthesizer = synthesizer.WithRelevanceThreshold(cfg.relevanceThreshold)
	}

	inv := investigate.New(
		optimizer, searchClient, st, evaluator, synthesizer,
		investigate.Policy{
			MaxDepth:         cfg.maxDepth,
			CallBudget:       cfg.callBudget,
			InsightThreshold: cfg.insightThreshold,
		},
		cfg.logger,
	)

	return &Client{
		store:        st,
		kv:           kv,
		investigator: inv,
		documents:    st,
	}
}

// roleCompleter returns the custom completer when one is configured,
// otherwise an OpenAI-compatible client labeled with the pipeline role.
func roleCompleter(cfg *clientConfig, role string) domain.Completer {
	if cfg.completer != nil {
		return cfg.completer
	}
	return openaiLLM.NewCompleter(&openaiLLM.Config{
		APIKey:  cfg.llmAPIKey,
		BaseURL: cfg.llmBaseURL,
		Model:   cfg.llmModel,
		Role:    role,
		Logger:  cfg.logger,
	})
}

// Close releases all resources.
func (c *Client) Close() {
	if c.kv != nil {
		c.kv.Close()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
}

// Ping checks document store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Investigate runs one investigation end to end and returns the report.
func (c *Client) Investigate(ctx context.Context, profile Profile, turns []Turn) (Report, error) {
	domTurns := make([]domain.Turn, len(turns))
	for i, t := range turns {
		domTurns[i] = domain.Turn{Role: t.Role, Content: t.Content}
	}

	report, err := c.investigator.Run(ctx, domain.TargetProfile{
		Description:  profile.Description,
		Query:        profile.Query,
		Size:         profile.Size,
		Include:      profile.Include,
		ContextLines: profile.ContextLines,
	}, domTurns)
	if err != nil {
		return Report{}, mapErr(err)
	}

	return reportFromDomain(report), nil
}

// Document returns a persisted document by ID.
func (c *Client) Document(ctx context.Context, docID string) (Document, error) {
	doc, err := c.documents.Get(ctx, docID)
	if err != nil {
		return Document{}, mapErr(err)
	}
	return Document{
		DocID:     doc.DocID,
		Query:     doc.Query,
		Title:     doc.Title,
		Kind:      string(doc.Content.Kind),
		Content:   doc.Content.Raw,
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Evaluations returns the full scoring history of a document, oldest first.
func (c *Client) Evaluations(ctx context.Context, docID string) ([]Evaluation, error) {
	if _, err := c.documents.Get(ctx, docID); err != nil {
		return nil, mapErr(err)
	}
	evals, err := c.documents.ListEvaluationsByDoc(ctx, docID)
	if err != nil {
		return nil, mapErr(err)
	}

	out := make([]Evaluation, len(evals))
	for i, ev := range evals {
		out[i] = Evaluation{
			EvaluationID:   ev.EvaluationID,
			DocID:          ev.DocID,
			Query:          ev.Query,
			RelevanceScore: ev.RelevanceScore,
			InsightScore:   ev.InsightScore,
			EvaluationText: ev.EvaluationText,
			CreatedAt:      ev.CreatedAt,
		}
	}
	return out, nil
}

// CountDocuments returns the number of persisted documents.
func (c *Client) CountDocuments(ctx context.Context) (int, error) {
	n, err := c.documents.CountDocuments(ctx)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func reportFromDomain(report domain.Report) Report {
	out := Report{
		Intent:  report.Intent,
		Body:    report.Body,
		Outcome: string(report.Outcome),
	}
	for _, c := range report.Citations {
		out.Citations = append(out.Citations, Citation{Ref: c.Ref, DocID: c.DocID, Title: c.Title})
	}
	for _, d := range report.Discarded {
		out.Discarded = append(out.Discarded, Discard{DocID: d.DocID, Title: d.Title, Reason: d.Reason})
	}
	return out
}

// mapErr translates internal sentinels into the public ones.
func mapErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrEscalationDeclined):
		return ErrEscalationDeclined
	case errors.Is(err, domain.ErrSearchFailed):
		return ErrSearchFailed
	case errors.Is(err, domain.ErrDocumentNotFound):
		return ErrDocumentNotFound
	}
	return err
}
