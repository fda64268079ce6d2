package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "retrieval_requests_total",
			Help:      "Total number of search API requests",
		},
		[]string{"status"}, // "success" / "transient" / "terminal"
	)

	RetrievalRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "retrieval_retries_total",
			Help:      "Total number of search API retries",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM inference requests",
		},
		[]string{"role", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deepsearch",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM inference request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"role"},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "evaluations_total",
			Help:      "Total number of document evaluations",
		},
		[]string{"outcome"}, // "scored" / "sentinel"
	)

	EvaluationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "evaluation_cache_total",
			Help:      "Evaluation cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	TaskIterationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "task_iterations_total",
			Help:      "Total number of investigation loop iterations",
		},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepsearch",
			Name:      "tasks_total",
			Help:      "Total number of investigation tasks by outcome",
		},
		[]string{"outcome"}, // "complete" / "partial" / "empty" / "failed" / "declined"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers the pipeline metrics. Must be called once
// from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalRetriesTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(EvaluationCacheTotal)
	prometheus.MustRegister(TaskIterationsTotal)
	prometheus.MustRegister(TasksTotal)
	pipelineMetricsRegistered = true
}
