// Package metrics exposes Prometheus collectors for conversation turns and
// the providers a turn depends on.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_turns_total",
			Help: "Total number of conversation turns by classified intent and resulting stage",
		},
		[]string{"intent", "stage"},
	)

	TurnErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_turn_errors_total",
			Help: "Total number of turns that failed with a transport error",
		},
		[]string{"kind"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sahayak_turn_duration_seconds",
			Help:    "Duration of turn processing in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"mode"},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahayak_turns_active",
			Help: "Number of turns currently being processed",
		},
	)

	SessionsBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahayak_sessions_busy",
			Help: "Number of sessions with a turn running or waiting",
		},
	)

	FallbackCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_classifier_fallback_total",
			Help: "Fallback classifier calls by outcome (ok, error, timeout, malformed)",
		},
		[]string{"outcome"},
	)

	FallbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sahayak_classifier_fallback_duration_seconds",
			Help:    "Latency of fallback classifier calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProviderCostCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_provider_cost_cents_total",
			Help: "Estimated provider spend in US cents",
		},
		[]string{"provider"},
	)
)
