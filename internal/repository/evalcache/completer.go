// Package evalcache caches LLM completions for the evaluation rubric in a
// key-value store. Scoring the same document against the same query is the
// common case on repeat investigations, and a cached completion costs no
// tokens.
package evalcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/db"
	"github.com/intelforge/deepsearch/internal/domain"
)

const cacheKeyPrefix = "deepsearch:eval_cache:"

// store is the consumer interface for the completion cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedCompleter caches completions keyed by the prompt pair.
type CachedCompleter struct {
	inner      domain.Completer
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Completer,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedCompleter {
	return &CachedCompleter{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Complete returns a cached completion or calls the inner completer.
// Cache failures on either path are logged and ignored; the cache never
// fails a completion.
func (c *CachedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	key := c.cacheKey(systemPrompt, userPrompt)

	if out, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return out, nil
	}

	c.incCache("miss")

	out, err := c.inner.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("complete prompt: %w", err)
	}

	c.putToCache(ctx, key, out)
	return out, nil
}

func (c *CachedCompleter) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes both prompts so rubric revisions invalidate old entries.
func (c *CachedCompleter) cacheKey(systemPrompt, userPrompt string) string {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(userPrompt))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedCompleter) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached completion", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *CachedCompleter) putToCache(ctx context.Context, key string, out string) {
	if err := c.store.SetWithTTL(ctx, key, []byte(out), c.ttl); err != nil {
		c.logger.Warn("Failed to cache completion", zap.String("key", key), zap.Error(err))
	}
}
