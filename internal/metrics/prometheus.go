package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costquest_pipeline_stage_duration_seconds",
			Help:    "Estimation pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costquest_pipeline_runs_total",
			Help: "Total estimation pipeline runs",
		},
		[]string{"status"},
	)

	BoQLinesGenerated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costquest_boq_lines_generated",
			Help:    "BoQ lines produced per pipeline run",
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
		},
	)

	BoQLinesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "costquest_boq_lines_dropped_total",
			Help: "Generated rows dropped for an invalid cost category",
		},
	)

	PriceLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costquest_price_lookups_total",
			Help: "Market price lookups by outcome",
		},
		[]string{"outcome"},
	)

	PriceCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costquest_price_cache_hits_total",
			Help: "Price lookup cache hits",
		},
		[]string{"cache_type"},
	)

	PriceCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costquest_price_cache_misses_total",
			Help: "Price lookup cache misses",
		},
		[]string{"cache_type"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costquest_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	AnalysisConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costquest_analysis_confidence",
			Help:    "Plan analysis confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	AccuracyScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costquest_accuracy_score",
			Help:    "Student accuracy scores against the AI reference",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

func Init() {
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(BoQLinesGenerated)
	prometheus.MustRegister(BoQLinesDropped)
	prometheus.MustRegister(PriceLookupsTotal)
	prometheus.MustRegister(PriceCacheHits)
	prometheus.MustRegister(PriceCacheMisses)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(AnalysisConfidence)
	prometheus.MustRegister(AccuracyScores)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
