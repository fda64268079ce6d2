package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/config"
	"github.com/intelforge/deepsearch/internal/db"
	dbRedis "github.com/intelforge/deepsearch/internal/db/redis"
	"github.com/intelforge/deepsearch/internal/domain"
	logpkg "github.com/intelforge/deepsearch/internal/logger"
	"github.com/intelforge/deepsearch/internal/metrics"
	"github.com/intelforge/deepsearch/internal/repository/evalcache"
	"github.com/intelforge/deepsearch/internal/repository/store"
	"github.com/intelforge/deepsearch/internal/retrieval"
	chiTransport "github.com/intelforge/deepsearch/internal/transport/chi"
	openaiLLM "github.com/intelforge/deepsearch/internal/transport/openai"
	"github.com/intelforge/deepsearch/internal/usecase/evaluate"
	"github.com/intelforge/deepsearch/internal/usecase/investigate"
	"github.com/intelforge/deepsearch/internal/usecase/optimize"
	"github.com/intelforge/deepsearch/internal/usecase/synthesize"
	"github.com/intelforge/deepsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting deepsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Document store (SQLite)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	if err := st.Ping(ctx); err != nil {
		logger.Fatal("Document store not ready", zap.Error(err))
	}
	logger.Info("Document store ready")

	// Evaluation cache (optional)
	var kv db.Store
	if cfg.Cache.Enabled {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		kv = redisStore
		logger.Info("Connected to evaluation cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Search API client — one limiter shared process-wide
	limiter := retrieval.NewLimiter(time.Duration(cfg.Retrieval.MinIntervalSec) * time.Second)
	searchClient := retrieval.NewClient(retrieval.Config{
		BaseURL:     cfg.Retrieval.BaseURL,
		APIKey:      cfg.Retrieval.APIKey,
		Timeout:     time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
		MaxAttempts: cfg.Retrieval.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Retrieval.BackoffBaseMS) * time.Millisecond,
		MaxBackoff:  time.Duration(cfg.Retrieval.BackoffMaxMS) * time.Millisecond,
	}, limiter, logger)

	// One completer per pipeline role so transport metrics stay attributable
	planner := buildCompleter(cfg.LLM, "planner", logger)
	synthWriter := buildCompleter(cfg.LLM, "synthesizer", logger)

	// Evaluator completions are cacheable: same document + same query is the
	// common case on repeat investigations.
	var evalLLM domain.Completer = buildCompleter(cfg.LLM, "evaluator", logger)
	if kv != nil {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		evalLLM = evalcache.New(evalLLM, kv, ttl, metrics.EvaluationCacheTotal, logger)
	}

	// Use case services
	optimizer := optimize.New(planner, logger).
		WithMaxQueries(cfg.Pipeline.MaxQueries)
	evaluator := evaluate.New(evalLLM, st, logger).
		WithConcurrency(cfg.Pipeline.EvalConcurrency)
	synthesizer := synthesize.New(synthWriter, logger).
		WithRelevanceThreshold(cfg.Pipeline.RelevanceThreshold)

	investigator := investigate.New(
		optimizer, searchClient, st, evaluator, synthesizer,
		investigate.Policy{
			MaxDepth:         cfg.Pipeline.MaxDepth,
			CallBudget:       cfg.Pipeline.CallBudget,
			InsightThreshold: cfg.Pipeline.InsightThreshold,
			TaskTimeout:      time.Duration(cfg.Pipeline.TaskTimeoutSec) * time.Second,
		},
		logger,
	)

	// Health checks. Pass nil interface (not typed nil pointer!) if the cache
	// is not configured.
	pingers := map[string]chiTransport.Pinger{"database": st}
	if kv != nil {
		pingers["cache"] = kv
	}

	server := chiTransport.NewServer(investigator, st, pingers, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func buildCompleter(cfg config.LLMConfig, role string, logger *zap.Logger) *openaiLLM.Completer {
	return openaiLLM.NewCompleter(&openaiLLM.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Role:    role,
		Logger:  logger,
	})
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
