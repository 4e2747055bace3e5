// Package metrics provides the collector's own instrumentation. The
// definitions live on a private registry that the push client appends to
// every payload, so cycle health travels with the counters it describes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all self-instrumentation metrics.
var Registry = prometheus.NewRegistry()

var (
	// CycleDuration tracks the time spent on one collect-and-push cycle.
	CycleDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fbxmetrics_cycle_duration_seconds",
			Help:    "Time spent on one collect-and-push cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CollectErrors tracks per-target collection failures.
	CollectErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbxmetrics_collect_errors_total",
			Help: "Collection errors by poll target",
		},
		[]string{"target"},
	)

	// PushFailures tracks delivery failures by failure kind.
	PushFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fbxmetrics_push_failures_total",
			Help: "Sink delivery failures by kind",
		},
		[]string{"kind"},
	)

	// Logins counts login handshakes performed against the device.
	Logins = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fbxmetrics_logins_total",
			Help: "Login handshakes performed",
		},
	)

	// SamplesCollected reports the sample count of the last cycle.
	SamplesCollected = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fbxmetrics_samples_last_cycle",
			Help: "Samples produced by the last collection cycle",
		},
	)

	// LastCycleSuccess is the Unix timestamp of the last fully successful
	// cycle.
	LastCycleSuccess = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fbxmetrics_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful cycle",
		},
	)
)
