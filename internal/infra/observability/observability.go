// Package observability exposes the Prometheus metrics of the generation
// core: run counters, score and duration distributions, job gauges and
// cache/provider counters. The /metrics endpoint is mounted by the HTTP
// server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Generation Metrics ─────────────────────────────────────────────────────

// GenerationRuns counts generation runs by outcome.
var GenerationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "airgrid",
	Subsystem: "generation",
	Name:      "runs_total",
	Help:      "Total generation runs by outcome.",
}, []string{"outcome"})

// GenerationDuration tracks wall-clock generation time.
var GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "airgrid",
	Subsystem: "generation",
	Name:      "duration_seconds",
	Help:      "Generation run duration in seconds.",
	Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
})

// GenerationBestScore tracks the best average score per run.
var GenerationBestScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "airgrid",
	Subsystem: "generation",
	Name:      "best_score",
	Help:      "Best average score of completed runs.",
	Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
})

// GenerationReplacements counts replaced programs by pass.
var GenerationReplacements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "airgrid",
	Subsystem: "generation",
	Name:      "replacements_total",
	Help:      "Programs replaced by post-processing passes.",
}, []string{"reason"})

// ─── Job Metrics ────────────────────────────────────────────────────────────

// JobsActive tracks currently pending or running jobs.
var JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "airgrid",
	Subsystem: "jobs",
	Name:      "active",
	Help:      "Number of pending or running jobs.",
})

// JobsCompleted counts finished jobs by terminal status.
var JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "airgrid",
	Subsystem: "jobs",
	Name:      "completed_total",
	Help:      "Total finished jobs by terminal status.",
}, []string{"status"})

// StreamSubscribers tracks attached job-stream subscribers.
var StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "airgrid",
	Subsystem: "stream",
	Name:      "subscribers",
	Help:      "Number of attached job stream subscribers.",
})

// StreamDropped counts subscribers dropped for falling behind.
var StreamDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "airgrid",
	Subsystem: "stream",
	Name:      "dropped_total",
	Help:      "Subscribers dropped because their buffer filled.",
})

// ─── Cache & Provider Metrics ───────────────────────────────────────────────

// CacheLookups counts metadata cache lookups by result.
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "airgrid",
	Subsystem: "metacache",
	Name:      "lookups_total",
	Help:      "Metadata cache lookups by result (hit, miss, error).",
}, []string{"result"})

// ProviderLookups counts metadata provider lookups by result.
var ProviderLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "airgrid",
	Subsystem: "provider",
	Name:      "lookups_total",
	Help:      "Metadata provider lookups by result (ok, error, open).",
}, []string{"result"})
