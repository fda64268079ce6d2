package deepsearch

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	dbPath string

	llmAPIKey  string
	llmBaseURL string
	llmModel   string
	completer  Completer

	searchBaseURL string
	searchAPIKey  string
	minInterval   time.Duration
	maxAttempts   int
	backoffBase   time.Duration
	backoffMax    time.Duration

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	maxDepth           int
	callBudget         int
	insightThreshold   float64
	relevanceThreshold int

	logger *zap.Logger
}

// WithDatabase sets the SQLite database file path. Defaults to
// "deepsearch.db" in the working directory.
func WithDatabase(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dbPath = path
	})
}

// WithLLM configures the OpenAI-compatible inference provider shared by the
// planner, evaluator, and synthesizer roles.
func WithLLM(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmAPIKey = apiKey
		c.llmBaseURL = baseURL
		c.llmModel = model
	})
}

// WithCompleter replaces the built-in inference client with a custom
// implementation. Takes precedence over WithLLM.
func WithCompleter(completer Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = completer
	})
}

// WithSearchAPI configures the entity-search source.
func WithSearchAPI(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchBaseURL = baseURL
		c.searchAPIKey = apiKey
	})
}

// WithSearchPacing overrides the minimum interval between search calls and
// the per-call retry budget.
func WithSearchPacing(minInterval time.Duration, maxAttempts int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minInterval = minInterval
		c.maxAttempts = maxAttempts
	})
}

// WithSearchBackoff overrides the exponential-backoff window applied between
// retried search calls. The delay for attempt n is base doubled n times,
// capped at max, with jitter.
func WithSearchBackoff(base, max time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.backoffBase = base
		c.backoffMax = max
	})
}

// WithCache enables the Redis-backed evaluation cache.
func WithCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithPolicy overrides the investigation loop bounds.
func WithPolicy(maxDepth, callBudget int, insightThreshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxDepth = maxDepth
		c.callBudget = callBudget
		c.insightThreshold = insightThreshold
	})
}

// WithRelevanceThreshold sets the minimum relevance score a document needs
// to be cited in the report.
func WithRelevanceThreshold(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.relevanceThreshold = n
	})
}

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
