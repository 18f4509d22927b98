package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline runs
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_runs_started_total",
			Help: "Total number of pipeline runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_runs_completed_total",
			Help: "Total number of pipeline runs finished, by outcome",
		},
		[]string{"status", "search_type"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_stage_duration_seconds",
			Help:    "Time spent in each pipeline state",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	Refinements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_refinements_total",
			Help: "Runs that needed a refinement pass",
		},
	)

	Augmentations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_augmentations_total",
			Help: "Runs where synthesis requested an additional search",
		},
	)

	// Inference gateway
	InferenceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_inference_calls_total",
			Help: "Inference attempts by task and outcome",
		},
		[]string{"task", "status"},
	)

	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_inference_latency_seconds",
			Help:    "Inference call latency in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"task"},
	)

	PromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_prompt_tokens",
			Help:    "Estimated prompt size in tokens",
			Buckets: []float64{100, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
		[]string{"task"},
	)

	// Retrieval
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_search_requests_total",
			Help: "Web search requests by scope and outcome",
		},
		[]string{"scope", "status"},
	)

	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_fetch_requests_total",
			Help: "Page fetches by outcome",
		},
		[]string{"status"},
	)

	Verdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_validation_verdicts_total",
			Help: "Validation verdicts by outcome",
		},
		[]string{"verdict"},
	)

	DroppedSources = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_abstraction_dropped_total",
			Help: "Admitted sources dropped because abstraction failed",
		},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_embedding_requests_total",
			Help: "Embedding requests by outcome",
		},
		[]string{"status"},
	)
)

func RecordVerdict(admit bool) {
	if admit {
		Verdicts.WithLabelValues("admit").Inc()
		return
	}
	Verdicts.WithLabelValues("reject").Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func RecordEmbedding(err error) {
	EmbeddingRequests.WithLabelValues(status(err)).Inc()
}

func RecordFetch(outcome string) {
	FetchRequests.WithLabelValues(outcome).Inc()
}
