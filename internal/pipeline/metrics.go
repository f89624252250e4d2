package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts enrich and chat calls by outcome (success, failure).
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnpj_enrich",
		Subsystem: "agent",
		Name:      "requests_total",
		Help:      "Enrich and chat calls by operation and outcome",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cnpj_enrich",
		Subsystem: "agent",
		Name:      "request_duration_seconds",
		Help:      "End-to-end latency of enrich and chat calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"operation"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cnpj_enrich",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Latency of each enrichment stage",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// tokensUsed counts LLM tokens by provider and operation.
	tokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnpj_enrich",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "LLM tokens consumed by provider and operation",
	}, []string{"provider", "operation"})

	presenceFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnpj_enrich",
		Subsystem: "pipeline",
		Name:      "presence_fields_total",
		Help:      "Digital-presence fields found, by field",
	}, []string{"field"})
)
