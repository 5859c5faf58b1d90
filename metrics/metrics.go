package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters are labeled by endpoint so dashboards can tell which
// diagnosis step is burning fallback candidates.
var (
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_pipeline_attempts_total",
		Help: "Completion attempts issued to the provider, by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	ExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_pipeline_exhausted_total",
		Help: "Pipeline runs that exhausted every candidate and served the fallback payload.",
	}, []string{"endpoint"})

	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_provider_request_duration_seconds",
		Help:    "Wall-clock duration of individual provider calls.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"endpoint", "model"})
)
