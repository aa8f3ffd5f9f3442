package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_sessions_total",
			Help: "Total number of research sessions by stop reason",
		},
		[]string{"stop_reason"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_session_duration_seconds",
			Help:    "Wall-clock duration of research sessions",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LoopsPerSession = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_loops_per_session",
			Help:    "Reflection cycles executed per session",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	// Retrieval metrics
	RetrievalTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_retrieval_tasks_total",
			Help: "Retrieval tasks by backend and status",
		},
		[]string{"backend", "status"}, // status: ok, unavailable
	)

	SourcesPerSession = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_sources_per_session",
			Help:    "Sources collected and referenced per session",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"kind"}, // kind: collected, referenced
	)

	// Provider metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_llm_calls_total",
			Help: "Text generation calls by provider, model and status",
		},
		[]string{"provider", "model", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_llm_latency_seconds",
			Help:    "Text generation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	SearchCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_search_calls_total",
			Help: "Web search calls by provider and status",
		},
		[]string{"provider", "status"}, // status: ok, error, cache_hit
	)
)

func RecordSession(stopReason string, loops int, duration time.Duration) {
	SessionsTotal.WithLabelValues(stopReason).Inc()
	LoopsPerSession.Observe(float64(loops))
	SessionDuration.Observe(duration.Seconds())
}

func RecordSources(collected, referenced int) {
	SourcesPerSession.WithLabelValues("collected").Observe(float64(collected))
	SourcesPerSession.WithLabelValues("referenced").Observe(float64(referenced))
}

func RecordRetrieval(backend string, unavailable bool) {
	status := "ok"
	if unavailable {
		status = "unavailable"
	}
	RetrievalTasks.WithLabelValues(backend, status).Inc()
}

func RecordLLMCall(provider, model string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LLMCalls.WithLabelValues(provider, model, status).Inc()
	LLMLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func RecordSearch(provider, status string) {
	SearchCalls.WithLabelValues(provider, status).Inc()
}
